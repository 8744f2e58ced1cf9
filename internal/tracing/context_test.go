package tracing

import (
	"errors"
	"testing"

	"github.com/spanlight/spanlight/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceContextLifecycle(t *testing.T) {
	logger := logging.NewNop()

	t.Run("root span created at construction", func(t *testing.T) {
		tc := NewContext(nil, logger)

		root := tc.CurrentSpan()
		require.NotNil(t, root)
		assert.Equal(t, RootOperationName, root.OperationName)
		assert.Empty(t, root.ParentSpanID)
		assert.Equal(t, StatusInProgress, root.Status)
	})

	t.Run("well nested spans", func(t *testing.T) {
		tc := NewContext(nil, logger)
		root := tc.CurrentSpan()

		outer, err := tc.StartSpan("MessageService.handle", map[string]any{"user": "u-1"})
		require.NoError(t, err)
		assert.Equal(t, root.SpanID, outer.ParentSpanID)
		assert.Equal(t, outer, tc.CurrentSpan())

		inner, err := tc.StartSpan("CacheService.lookup", nil)
		require.NoError(t, err)
		assert.Equal(t, outer.SpanID, inner.ParentSpanID)

		tc.EndSpan(inner.SpanID, nil)
		assert.Equal(t, outer, tc.CurrentSpan(), "current should restore to parent")

		tc.EndSpan(outer.SpanID, nil)
		assert.Equal(t, root, tc.CurrentSpan())

		trace := tc.Finalize()
		assert.Equal(t, 3, trace.SpanCount(), "two started spans plus implicit root")
		for _, s := range trace.Spans {
			assert.NotEqual(t, StatusInProgress, s.Status)
		}
	})

	t.Run("end span with error copies error into tags", func(t *testing.T) {
		tc := NewContext(nil, logger)

		span, err := tc.StartSpan("AIService.generate", nil)
		require.NoError(t, err)

		tc.EndSpan(span.SpanID, errors.New("model timeout"))

		assert.Equal(t, StatusError, span.Status)
		assert.Equal(t, "model timeout", span.Error)
		assert.Equal(t, "model timeout", span.Tags["error.message"])
		assert.NotEmpty(t, span.Tags["error.type"])
	})

	t.Run("ending non-innermost span keeps current unchanged", func(t *testing.T) {
		tc := NewContext(nil, logger)

		first, _ := tc.StartSpan("first", nil)
		second, _ := tc.StartSpan("second", nil)

		tc.EndSpan(first.SpanID, nil)
		assert.Equal(t, second, tc.CurrentSpan())
	})

	t.Run("end span is idempotent", func(t *testing.T) {
		tc := NewContext(nil, logger)

		span, _ := tc.StartSpan("op", nil)
		tc.EndSpan(span.SpanID, nil)

		duration := span.Duration
		status := span.Status

		tc.EndSpan(span.SpanID, errors.New("second end should be ignored"))

		assert.Equal(t, duration, span.Duration)
		assert.Equal(t, status, span.Status)
		assert.Empty(t, span.Error)
	})

	t.Run("end of unknown span is a no-op", func(t *testing.T) {
		tc := NewContext(nil, logger)
		tc.EndSpan("spn_does_not_exist", nil)

		trace := tc.Finalize()
		assert.Equal(t, 1, trace.SpanCount())
	})
}

func TestTraceContextFinalize(t *testing.T) {
	logger := logging.NewNop()

	t.Run("start span after finalize fails hard", func(t *testing.T) {
		tc := NewContext(nil, logger)
		tc.Finalize()

		_, err := tc.StartSpan("late", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrContextFinalized)
	})

	t.Run("open non-root spans close as error", func(t *testing.T) {
		tc := NewContext(nil, logger)

		leaked, _ := tc.StartSpan("leaked", nil)
		trace := tc.Finalize()

		root := trace.Root()
		assert.Equal(t, StatusSuccess, root.Status, "root is expected to stay open")

		var found *Span
		for _, s := range trace.Spans {
			if s.SpanID == leaked.SpanID {
				found = s
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, StatusError, found.Status)
		assert.Contains(t, found.Error, "not properly closed")
	})

	t.Run("double finalize returns same trace", func(t *testing.T) {
		tc := NewContext(nil, logger)

		first := tc.Finalize()
		second := tc.Finalize()

		assert.Same(t, first, second)
	})

	t.Run("tags and logs after finalize are dropped", func(t *testing.T) {
		tc := NewContext(nil, logger)
		trace := tc.Finalize()

		tc.AddTags(map[string]any{"late": true})
		tc.AddLog("too late", "info", nil)

		root := trace.Root()
		assert.NotContains(t, root.Tags, "late")
		assert.Empty(t, root.Logs)
	})

	t.Run("metadata carried onto trace", func(t *testing.T) {
		tc := NewContext(map[string]any{"source": "chat", "user": "u-9"}, logger)
		trace := tc.Finalize()

		assert.Equal(t, "chat", trace.Metadata["source"])
		assert.Equal(t, "u-9", trace.Metadata["user"])
	})
}

func TestTraceContextTagsAndLogs(t *testing.T) {
	logger := logging.NewNop()

	tc := NewContext(nil, logger)
	span, _ := tc.StartSpan("MessageService.send", map[string]any{"channel": "general"})

	tc.AddTags(map[string]any{"retries": 2})
	tc.AddLog("sending", "info", map[string]any{"bytes": 512})
	tc.AddLog("sent", "debug", nil)

	assert.Equal(t, "general", span.Tags["channel"])
	assert.Equal(t, 2, span.Tags["retries"])
	require.Len(t, span.Logs, 2)
	assert.Equal(t, "sending", span.Logs[0].Message)
	assert.Equal(t, "info", span.Logs[0].Level)
	assert.Equal(t, 512, span.Logs[0].Fields["bytes"])
}
