package processor

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("2024-01,revenue,100.50;"), 200)

	compressed := Compress(data)
	if len(compressed) >= len(data) {
		t.Fatalf("compressed size %d is not smaller than %d", len(compressed), len(data))
	}

	restored, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(restored, data) {
		t.Fatal("restored data differs")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	report := map[string]any{"run_id": "r1", "months": []string{"2024-01", "2024-02"}}

	payload, rawSize, err := EncodeSnapshot(report)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := json.Marshal(report)
	if rawSize != len(want) {
		t.Fatalf("raw size = %d, want %d", rawSize, len(want))
	}

	decoded, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, want) {
		t.Fatalf("decoded = %s, want %s", decoded, want)
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("not snappy")); err == nil {
		t.Fatal("expected error for corrupted payload")
	}
	if _, err := DecodeSnapshot(Compress([]byte("{broken"))); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
