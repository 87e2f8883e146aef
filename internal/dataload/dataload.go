// Package dataload reads settlement and generator seed data from CSV files,
// falling back to a deterministic built-in scenario when files are missing
// or malformed. Seed problems are never fatal to the search.
package dataload

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gridplan/internal/grid"
	"gridplan/internal/model"
)

// Load assembles StaticData from a data directory holding settlements.csv
// and generators.csv. An empty dir, or any load error, yields the built-in
// default scenario for the affected part.
func Load(dir string) *grid.StaticData {
	static := DefaultStaticData()
	if dir == "" {
		return static
	}

	settlements, err := LoadSettlements(filepath.Join(dir, "settlements.csv"))
	if err != nil {
		slog.Warn("settlement seed load failed, using defaults", "dir", dir, "err", err)
	} else if len(settlements) > 0 {
		static.Settlements = settlements
	}

	generators, err := LoadGenerators(filepath.Join(dir, "generators.csv"))
	if err != nil {
		slog.Warn("generator seed load failed, using defaults", "dir", dir, "err", err)
	} else if len(generators) > 0 {
		static.SeedGenerators = generators
	}

	return static
}

// LoadSettlements parses settlements.csv: name,x,y,population[,base_demand_mw].
func LoadSettlements(path string) ([]*grid.Settlement, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var settlements []*grid.Settlement
	for i, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("settlement row %d: want at least 4 columns, got %d", i+1, len(row))
		}
		x, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("settlement row %d x: %w", i+1, err)
		}
		y, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("settlement row %d y: %w", i+1, err)
		}
		pop, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("settlement row %d population: %w", i+1, err)
		}
		s := &grid.Settlement{
			Name:           row[0],
			Location:       grid.Coordinate{X: x, Y: y},
			BasePopulation: pop,
		}
		if len(row) > 4 && row[4] != "" {
			demand, err := strconv.ParseFloat(row[4], 64)
			if err != nil {
				return nil, fmt.Errorf("settlement row %d base demand: %w", i+1, err)
			}
			s.BaseDemandMW = demand
		}
		settlements = append(settlements, s)
	}
	return settlements, nil
}

// LoadGenerators parses generators.csv:
// id,type,x,y,capacity_mw,efficiency,commission_year.
func LoadGenerators(path string) ([]*grid.Generator, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var generators []*grid.Generator
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("generator row %d: want 7 columns, got %d", i+1, len(row))
		}
		gtype := model.GeneratorType(row[1])
		if _, ok := grid.Specs[gtype]; !ok {
			return nil, fmt.Errorf("generator row %d: unknown type %q", i+1, row[1])
		}
		x, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("generator row %d x: %w", i+1, err)
		}
		y, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("generator row %d y: %w", i+1, err)
		}
		capacity, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("generator row %d capacity: %w", i+1, err)
		}
		efficiency, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("generator row %d efficiency: %w", i+1, err)
		}
		year, err := strconv.Atoi(row[6])
		if err != nil {
			return nil, fmt.Errorf("generator row %d commission year: %w", i+1, err)
		}
		generators = append(generators, &grid.Generator{
			ID:               row[0],
			Name:             row[0],
			Type:             gtype,
			Location:         grid.Coordinate{X: x, Y: y},
			CapacityMW:       capacity,
			Efficiency:       efficiency,
			OperationPercent: 100,
			CommissionYear:   year,
			Existing:         true,
		})
	}
	return generators, nil
}

// DefaultStaticData is the deterministic built-in scenario: a coastal
// region of eight settlements served by an aging fossil-heavy fleet.
func DefaultStaticData() *grid.StaticData {
	settlements := []*grid.Settlement{
		{Name: "Northport", Location: grid.Coordinate{X: 12, Y: 88}, BasePopulation: 820_000},
		{Name: "Eastvale", Location: grid.Coordinate{X: 74, Y: 61}, BasePopulation: 510_000},
		{Name: "Midbrook", Location: grid.Coordinate{X: 48, Y: 52}, BasePopulation: 1_250_000},
		{Name: "Southquay", Location: grid.Coordinate{X: 18, Y: 14}, BasePopulation: 640_000},
		{Name: "Westmoor", Location: grid.Coordinate{X: 85, Y: 25}, BasePopulation: 330_000},
		{Name: "Harborview", Location: grid.Coordinate{X: 8, Y: 45}, BasePopulation: 450_000},
		{Name: "Glenfield", Location: grid.Coordinate{X: 60, Y: 80}, BasePopulation: 270_000},
		{Name: "Redhill", Location: grid.Coordinate{X: 38, Y: 30}, BasePopulation: 190_000},
	}

	generators := []*grid.Generator{
		seedGenerator("seed_coal_1", model.GeneratorCoal, 42, 48, 1600, 0.82),
		seedGenerator("seed_coal_2", model.GeneratorCoal, 20, 20, 1600, 0.78),
		seedGenerator("seed_gascc_1", model.GeneratorGasCombined, 50, 58, 850, 0.85),
		seedGenerator("seed_gascc_2", model.GeneratorGasCombined, 70, 58, 850, 0.85),
		seedGenerator("seed_peaker_1", model.GeneratorGasPeaker, 46, 50, 600, 0.88),
		seedGenerator("seed_nuclear_1", model.GeneratorNuclear, 30, 70, 2400, 0.90),
		seedGenerator("seed_hydro_1", model.GeneratorHydroDam, 80, 40, 1000, 0.48),
		seedGenerator("seed_wind_1", model.GeneratorOnshoreWind, 65, 15, 150, 0.33),
		seedGenerator("seed_solar_1", model.GeneratorUtilitySolar, 55, 35, 200, 0.24),
	}

	coastline := make([]grid.Coordinate, 0, 21)
	for y := 0.0; y <= 100; y += 5 {
		coastline = append(coastline, grid.Coordinate{X: 0, Y: y})
	}

	return &grid.StaticData{
		Settlements:    settlements,
		SeedGenerators: generators,
		Coastline:      coastline,
		Width:          100,
		Height:         100,
	}
}

func seedGenerator(id string, t model.GeneratorType, x, y, capacity, efficiency float64) *grid.Generator {
	return &grid.Generator{
		ID:               id,
		Name:             id,
		Type:             t,
		Location:         grid.Coordinate{X: x, Y: y},
		CapacityMW:       capacity,
		Efficiency:       efficiency,
		OperationPercent: 100,
		CommissionYear:   2005,
		Existing:         true,
	}
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 && (rows[0][0] == "name" || rows[0][0] == "id") {
		rows = rows[1:]
	}
	return rows, nil
}
