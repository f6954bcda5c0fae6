package storage

import (
	"errors"
	"testing"

	"beltforge/internal/anneal"
	"beltforge/internal/model"
	"beltforge/internal/scoring"
)

func scoreFixture() scoring.Score {
	return scoring.Score{Belts: 4, Area: 27, Corners: 0}
}

func sampleSnapshot() LayoutSnapshot {
	return LayoutSnapshot{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Name:            "best-so-far",
		GridWidth:       20,
		GridHeight:      20,
		Machines: []model.Machine{
			{ID: "a", Type: model.Type3x3, X: 1, Y: 1, Orientation: model.North},
		},
		Connections: nil,
		Score:       scoreFixture(),
		Routed:      true,
	}
}

func TestLayoutCodecRoundTrip(t *testing.T) {
	input := sampleSnapshot()

	encoded, err := EncodeLayout(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeLayout(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Name != input.Name || len(decoded.Machines) != len(input.Machines) {
		t.Fatalf("decoded snapshot mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestLayoutCodecVersionMismatch(t *testing.T) {
	input := sampleSnapshot()
	input.CodecVersion++

	encoded, err := EncodeLayout(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = DecodeLayout(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestEliteArchiveCodecRoundTrip(t *testing.T) {
	input := []anneal.EliteEntry{
		{
			Machines:    map[string]model.Machine{"a": {ID: "a", X: 1, Y: 1, Orientation: model.North}},
			Connections: nil,
			Score:       scoreFixture(),
			Fingerprint: "a:1,1,north",
		},
	}

	encoded, err := EncodeEliteArchive(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEliteArchive(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Fingerprint != input[0].Fingerprint {
		t.Fatalf("decoded archive mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestEliteArchiveCodecRejectsAForeignVersion(t *testing.T) {
	encoded := []byte(`{"schema_version": 99, "codec_version": 1, "entries": []}`)
	if _, err := DecodeEliteArchive(encoded); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}
