// Command server runs the spanlight diagnostic engine: it serves the
// trace query surface, the export snapshot, Prometheus metrics, and the
// websocket dashboard stream.
package main
