package model

import (
	"testing"
	"time"
)

func TestDocumentEncodeDecode(t *testing.T) {
	d := Document{"source": "chat", "turn": 3}
	decoded := DecodeDocument(d.Encode())
	if decoded["source"] != "chat" {
		t.Fatalf("round trip lost source: %v", decoded)
	}
	if FloatFromAny(decoded["turn"]) != 3 {
		t.Fatalf("round trip lost turn: %v", decoded)
	}
}

func TestDecodeDocumentMalformed(t *testing.T) {
	if d := DecodeDocument("{not json"); len(d) != 0 {
		t.Fatalf("expected empty document, got %v", d)
	}
	if d := DecodeDocument(""); d == nil {
		t.Fatalf("expected non-nil document for empty input")
	}
}

func TestSanitizeDropsUnencodable(t *testing.T) {
	d := Document{"ok": "value", "bad": make(chan int)}
	clean := d.Sanitize()
	if clean["ok"] != "value" {
		t.Fatalf("sanitize dropped a good value: %v", clean)
	}
	if _, ok := clean["bad"]; ok {
		t.Fatalf("sanitize kept an unencodable value")
	}
}

func TestLooseValueHelpers(t *testing.T) {
	if StringFromAny("text") != "text" {
		t.Fatalf("string passthrough failed")
	}
	if StringFromAny(nil) != "" {
		t.Fatalf("nil must map to empty string")
	}
	if FloatFromAny(int64(7)) != 7 || FloatFromAny("x") != 0 {
		t.Fatalf("float coercion failed")
	}
	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if !TimeFromAny(stamp.Format(time.RFC3339Nano)).Equal(stamp) {
		t.Fatalf("time coercion failed")
	}
	if !TimeFromAny("garbage").IsZero() {
		t.Fatalf("expected zero time for garbage input")
	}
}

func TestCosineSimilarityBounds(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if CosineSimilarity(a, a) < 0.999 {
		t.Fatalf("identical vectors should score 1")
	}
	if CosineSimilarity(a, b) != 0 {
		t.Fatalf("orthogonal vectors should score 0")
	}
	if CosineSimilarity(nil, a) != 0 {
		t.Fatalf("empty vector should score 0")
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if got := Dot(v, v); got < 0.999 || got > 1.001 {
		t.Fatalf("normalized vector not unit length: %f", got)
	}
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("zero vector must pass through unchanged")
	}
}
