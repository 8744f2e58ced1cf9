/*
Package analysis turns a finalized trace into a structured performance
report.

The analyzer is a pure function over a trace: summary counts, cycle-safe
call-depth measurement, duration percentiles, slow and erroring span
detection, memory-delta classification from paired startMemoryMB and
endMemoryMB tags, a flattened timeline, and deterministic rule-based
insights and recommendations. Given the same trace it always produces the
same report.
*/
package analysis
