package storage

import (
	"encoding/json"
	"errors"

	"beltforge/internal/anneal"
	"beltforge/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// ErrVersionMismatch is returned by the Decode* functions when a
// payload's schema or codec version doesn't match what this build
// writes, mirroring the teacher's version-check-on-read discipline.
var ErrVersionMismatch = errors.New("record version mismatch")

// eliteArchiveEnvelope carries a VersionedRecord alongside the archive
// entries themselves, since anneal.EliteEntry has no version field of
// its own — it is SA-internal state, not a wire format.
type eliteArchiveEnvelope struct {
	model.VersionedRecord
	Entries []anneal.EliteEntry `json:"entries"`
}

func EncodeLayout(snapshot LayoutSnapshot) ([]byte, error) {
	return json.Marshal(snapshot)
}

func DecodeLayout(data []byte) (LayoutSnapshot, error) {
	var snapshot LayoutSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return LayoutSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return LayoutSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeEliteArchive(entries []anneal.EliteEntry) ([]byte, error) {
	envelope := eliteArchiveEnvelope{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		Entries: entries,
	}
	return json.Marshal(envelope)
}

func DecodeEliteArchive(data []byte) ([]anneal.EliteEntry, error) {
	var envelope eliteArchiveEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if err := checkVersion(envelope.VersionedRecord); err != nil {
		return nil, err
	}
	return envelope.Entries, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
