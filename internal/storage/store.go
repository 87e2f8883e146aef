package storage

import (
	"context"

	"gridplan/internal/model"
)

// Store defines persistence for search runs and learned weight snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveWeightsSnapshot(ctx context.Context, id string, snap model.WeightsSnapshot) error
	GetWeightsSnapshot(ctx context.Context, id string) (model.WeightsSnapshot, bool, error)
	SaveRunRecord(ctx context.Context, record model.RunRecord) error
	GetRunRecord(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRunRecords(ctx context.Context) ([]model.RunRecord, error)
	SaveBestStrategy(ctx context.Context, runID string, result model.SimulationResult) error
	GetBestStrategy(ctx context.Context, runID string) (model.SimulationResult, bool, error)
}
