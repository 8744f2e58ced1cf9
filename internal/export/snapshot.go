// Package export builds serializable snapshots of the engine's analytics
// for external dashboards. Snapshots are plain nested structures; no wire
// format beyond JSON is implied.
package export

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/spanlight/spanlight/internal/analysis"
	"github.com/spanlight/spanlight/internal/monitoring"
	"github.com/spanlight/spanlight/internal/store"
)

// Snapshot is the exportable view of the engine state.
type Snapshot struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Stats       store.Stats          `json:"stats"`
	Overview    monitoring.Overview  `json:"overview"`
	Analyses    []*analysis.Analysis `json:"analyses"`
}

// Build assembles a snapshot from the store and monitor.
func Build(s *store.Store, m *monitoring.Monitor) Snapshot {
	return Snapshot{
		GeneratedAt: time.Now(),
		Stats:       s.Stats(),
		Overview:    m.Overview(),
		Analyses:    s.Analyses(),
	}
}

// Marshal encodes a snapshot as JSON.
func Marshal(snapshot Snapshot) ([]byte, error) {
	return sonic.Marshal(snapshot)
}

// Unmarshal decodes a snapshot produced by Marshal. Round-tripping
// preserves summary counts and percentile values exactly.
func Unmarshal(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	err := sonic.Unmarshal(data, &snapshot)
	return snapshot, err
}

// WriteGzip writes the gzip-compressed JSON encoding of a snapshot to w.
func WriteGzip(w io.Writer, snapshot Snapshot) error {
	data, err := Marshal(snapshot)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
