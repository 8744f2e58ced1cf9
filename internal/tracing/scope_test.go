package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spanlight/spanlight/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopePropagation(t *testing.T) {
	logger := logging.NewNop()

	t.Run("from context without scope", func(t *testing.T) {
		_, ok := FromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("run with scope binds ambient context", func(t *testing.T) {
		tc := NewContext(nil, logger)

		err := RunWithScope(context.Background(), tc, func(ctx context.Context) error {
			ambient, ok := FromContext(ctx)
			require.True(t, ok)
			assert.Same(t, tc, ambient)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("scope survives goroutine hop through derived context", func(t *testing.T) {
		tc := NewContext(nil, logger)
		ctx := WithContext(context.Background(), tc)

		var wg sync.WaitGroup
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()
			ambient, ok := FromContext(ctx)
			assert.True(t, ok)
			assert.Same(t, tc, ambient)
		}(ctx)
		wg.Wait()
	})
}

func TestCreateChild(t *testing.T) {
	logger := logging.NewNop()

	parent := NewContext(map[string]any{"source": "chat", "region": "eu"}, logger)
	child := parent.CreateChild("fanout.worker", map[string]any{"region": "us"})

	assert.NotEqual(t, parent.TraceID(), child.TraceID())
	assert.Equal(t, "chat", child.Metadata()["source"], "parent metadata inherited")
	assert.Equal(t, "us", child.Metadata()["region"], "override wins")
	assert.Equal(t, "fanout.worker", child.Metadata()["operation"])
	assert.Equal(t, parent.TraceID().String(), child.Metadata()["parentTraceId"])

	root := child.CurrentSpan()
	require.NotNil(t, root)
	assert.Equal(t, RootOperationName, root.OperationName)
}

type captureCollector struct {
	mu     sync.Mutex
	traces []*Trace
}

func (c *captureCollector) Collect(trace *Trace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces = append(c.traces, trace)
}

func TestRun(t *testing.T) {
	logger := logging.NewNop()

	t.Run("success collects finalized trace", func(t *testing.T) {
		collector := &captureCollector{}

		err := Run(context.Background(), collector, "handle_message", nil, logger, func(ctx context.Context) error {
			tc, ok := FromContext(ctx)
			require.True(t, ok)

			span, err := tc.StartSpan("MessageService.process", nil)
			require.NoError(t, err)
			tc.EndSpan(span.SpanID, nil)
			return nil
		})
		require.NoError(t, err)

		require.Len(t, collector.traces, 1)
		trace := collector.traces[0]
		assert.Equal(t, 2, trace.SpanCount())
		assert.Equal(t, StatusSuccess, trace.Root().Status)
		assert.Equal(t, "handle_message", trace.Metadata["operation"])
	})

	t.Run("error attached to root span", func(t *testing.T) {
		collector := &captureCollector{}
		boom := errors.New("downstream unavailable")

		err := Run(context.Background(), collector, "handle_message", nil, logger, func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.Len(t, collector.traces, 1)
		root := collector.traces[0].Root()
		assert.Equal(t, StatusError, root.Status)
		assert.Equal(t, boom.Error(), root.Error)
	})

	t.Run("panic still collects the trace", func(t *testing.T) {
		collector := &captureCollector{}

		assert.Panics(t, func() {
			_ = Run(context.Background(), collector, "explodes", nil, logger, func(ctx context.Context) error {
				panic("kaboom")
			})
		})

		require.Len(t, collector.traces, 1)
		root := collector.traces[0].Root()
		assert.Equal(t, StatusError, root.Status)
		assert.Contains(t, root.Error, "kaboom")
	})
}
