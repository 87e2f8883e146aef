package storage

import (
	"encoding/json"
	"errors"

	"gridplan/internal/model"
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeWeightsSnapshot(snap model.WeightsSnapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func DecodeWeightsSnapshot(data []byte) (model.WeightsSnapshot, error) {
	var snap model.WeightsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.WeightsSnapshot{}, err
	}
	if err := checkVersion(snap.VersionedRecord); err != nil {
		return model.WeightsSnapshot{}, err
	}
	return snap, nil
}

func EncodeRunRecord(record model.RunRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeRunRecord(data []byte) (model.RunRecord, error) {
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return record, nil
}

func EncodeResult(result model.SimulationResult) ([]byte, error) {
	return json.Marshal(result)
}

func DecodeResult(data []byte) (model.SimulationResult, error) {
	var result model.SimulationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.SimulationResult{}, err
	}
	return result, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != model.CurrentSchemaVersion || v.CodecVersion != model.CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
