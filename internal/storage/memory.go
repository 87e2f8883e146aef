package storage

import (
	"context"
	"sort"
	"sync"

	"gridplan/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   map[string][]byte
	runs        map[string][]byte
	strategies  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = make(map[string][]byte)
	s.runs = make(map[string][]byte)
	s.strategies = make(map[string][]byte)
	return nil
}

func (s *MemoryStore) SaveWeightsSnapshot(_ context.Context, id string, snap model.WeightsSnapshot) error {
	payload, err := EncodeWeightsSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[id] = payload
	return nil
}

func (s *MemoryStore) GetWeightsSnapshot(_ context.Context, id string) (model.WeightsSnapshot, bool, error) {
	s.mu.RLock()
	payload, ok := s.snapshots[id]
	s.mu.RUnlock()

	if !ok {
		return model.WeightsSnapshot{}, false, nil
	}
	snap, err := DecodeWeightsSnapshot(payload)
	if err != nil {
		return model.WeightsSnapshot{}, false, err
	}
	return snap, true, nil
}

func (s *MemoryStore) SaveRunRecord(_ context.Context, record model.RunRecord) error {
	payload, err := EncodeRunRecord(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.ID] = payload
	return nil
}

func (s *MemoryStore) GetRunRecord(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	payload, ok := s.runs[id]
	s.mu.RUnlock()

	if !ok {
		return model.RunRecord{}, false, nil
	}
	record, err := DecodeRunRecord(payload)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return record, true, nil
}

func (s *MemoryStore) ListRunRecords(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	payloads := make([][]byte, 0, len(s.runs))
	for _, p := range s.runs {
		payloads = append(payloads, p)
	}
	s.mu.RUnlock()

	records := make([]model.RunRecord, 0, len(payloads))
	for _, p := range payloads {
		record, err := DecodeRunRecord(p)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtUTC == records[j].CreatedAtUTC {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAtUTC > records[j].CreatedAtUTC
	})
	return records, nil
}

func (s *MemoryStore) SaveBestStrategy(_ context.Context, runID string, result model.SimulationResult) error {
	payload, err := EncodeResult(result)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategies[runID] = payload
	return nil
}

func (s *MemoryStore) GetBestStrategy(_ context.Context, runID string) (model.SimulationResult, bool, error) {
	s.mu.RLock()
	payload, ok := s.strategies[runID]
	s.mu.RUnlock()

	if !ok {
		return model.SimulationResult{}, false, nil
	}
	result, err := DecodeResult(payload)
	if err != nil {
		return model.SimulationResult{}, false, err
	}
	return result, true, nil
}
