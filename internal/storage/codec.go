package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"asteroidnet/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec versions on a run record.
func Stamp(run model.RunRecord) model.RunRecord {
	run.SchemaVersion = CurrentSchemaVersion
	run.CodecVersion = CurrentCodecVersion
	return run
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

// Generation and fit history payloads carry their version in an envelope
// since the records themselves are plain rows.
type generationsPayload struct {
	model.VersionedRecord
	Generations []model.GenerationRecord `json:"generations"`
}

type fitHistoryPayload struct {
	model.VersionedRecord
	Passes []model.FitPass `json:"passes"`
}

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeGenerations(generations []model.GenerationRecord) ([]byte, error) {
	return json.Marshal(generationsPayload{VersionedRecord: currentVersion(), Generations: generations})
}

func DecodeGenerations(data []byte) ([]model.GenerationRecord, error) {
	var payload generationsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if err := checkVersion(payload.VersionedRecord); err != nil {
		return nil, err
	}
	return payload.Generations, nil
}

func EncodeFitHistory(passes []model.FitPass) ([]byte, error) {
	return json.Marshal(fitHistoryPayload{VersionedRecord: currentVersion(), Passes: passes})
}

func DecodeFitHistory(data []byte) ([]model.FitPass, error) {
	var payload fitHistoryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if err := checkVersion(payload.VersionedRecord); err != nil {
		return nil, err
	}
	return payload.Passes, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
