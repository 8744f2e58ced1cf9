package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	tests := []struct {
		prefix string
	}{
		{TracePrefix},
		{SpanPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			id := gen.GenerateWithPrefix(tt.prefix)
			if !strings.HasPrefix(id, tt.prefix+"_") {
				t.Errorf("ID %s should start with %s_", id, tt.prefix)
			}
		})
	}
}

func TestTypedGenerators(t *testing.T) {
	traceID := NewTraceID()
	spanID := NewSpanID()

	if !strings.HasPrefix(traceID.String(), "trc_") {
		t.Errorf("trace ID %s should start with trc_", traceID)
	}
	if !strings.HasPrefix(spanID.String(), "spn_") {
		t.Errorf("span ID %s should start with spn_", spanID)
	}
}

func TestIsValid(t *testing.T) {
	gen := NewGenerator()

	if !IsValid(gen.GenerateString()) {
		t.Error("freshly generated ULID should be valid")
	}
	if IsValid("not-a-ulid") {
		t.Error("garbage should not validate")
	}
}

func TestUniqueness(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := gen.GenerateString()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
