package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gridplan/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig records the configuration a search ran with, for reproduction.
type RunConfig struct {
	RunID              string  `json:"run_id"`
	StartYear          int     `json:"start_year"`
	EndYear            int     `json:"end_year"`
	Iterations         int     `json:"iterations"`
	Workers            int     `json:"workers"`
	Seed               int64   `json:"seed"`
	CheckpointDir      string  `json:"checkpoint_dir,omitempty"`
	CheckpointInterval int     `json:"checkpoint_interval"`
	Continued          bool    `json:"continued"`
	ForceFullFidelity  bool    `json:"force_full_fidelity"`
	EnableEnergySales  bool    `json:"enable_energy_sales"`
	OptimizationMode   string  `json:"optimization_mode"`
	VerifyFraction     float64 `json:"verify_fraction"`
	SiteScorer         string  `json:"site_scorer,omitempty"`
	SeedDataPath       string  `json:"seed_data_path,omitempty"`
}

// RunArtifacts is everything one search writes into its artifact directory.
type RunArtifacts struct {
	Config       RunConfig              `json:"config"`
	BestScore    float64                `json:"best_score"`
	BestMetrics  model.SimulationMetrics `json:"best_metrics"`
	Yearly       []model.YearlyMetrics  `json:"yearly"`
	Actions      map[int][]model.Action `json:"actions"`
	Deficit      map[int][]model.Action `json:"deficit_actions,omitempty"`
	ScoreHistory []float64              `json:"score_history,omitempty"`
	Failed       int                    `json:"failed_iterations"`
}

// RunIndexEntry is one row of the shared run index.
type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Iterations   int     `json:"iterations"`
	Workers      int     `json:"workers"`
	Seed         int64   `json:"seed"`
	Mode         string  `json:"mode"`
	BestScore    float64 `json:"best_score"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes the per-run artifact directory and returns its
// path: config.json, best_metrics.json, actions.json, score_history.json,
// and a yearly_metrics.csv for external reporting tools.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "best_metrics.json"), map[string]any{
		"best_score":        artifacts.BestScore,
		"best_metrics":      artifacts.BestMetrics,
		"failed_iterations": artifacts.Failed,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "actions.json"), map[string]any{
		"actions":         artifacts.Actions,
		"deficit_actions": artifacts.Deficit,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "score_history.json"), map[string]any{
		"scores":     artifacts.ScoreHistory,
		"best_score": artifacts.BestScore,
	}); err != nil {
		return "", err
	}
	if err := writeYearlyCSV(filepath.Join(runDir, "yearly_metrics.csv"), artifacts.Yearly); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex upserts an entry in the shared run index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns all index entries, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ReadRunConfig loads one run's recorded configuration.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

// ExportRunArtifacts copies one run's artifact files into outDir for
// external reporting or visualization.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "best_metrics.json", "actions.json", "score_history.json", "yearly_metrics.csv"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeYearlyCSV(path string, yearly []model.YearlyMetrics) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"year", "population", "power_usage_mw", "power_generation_mw", "power_balance_mw",
		"power_reliability_pct", "residual_shortfall_mw", "average_public_opinion",
		"net_co2_emissions_t", "total_carbon_offset_t", "yearly_total_cost", "total_cost",
		"active_generators",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, m := range yearly {
		row := []string{
			strconv.Itoa(m.Year),
			formatFloat(m.TotalPopulation),
			formatFloat(m.TotalPowerUsage),
			formatFloat(m.TotalPowerGeneration),
			formatFloat(m.PowerBalance),
			formatFloat(m.PowerReliability),
			formatFloat(m.ResidualShortfall),
			formatFloat(m.AveragePublicOpinion),
			formatFloat(m.NetCO2Emissions),
			formatFloat(m.TotalCarbonOffset),
			formatFloat(m.YearlyTotalCost),
			formatFloat(m.TotalCost),
			strconv.Itoa(m.ActiveGenerators),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
