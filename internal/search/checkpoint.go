package search

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gridplan/internal/model"
)

// Checkpoint directory layout, under a timestamped session directory:
//
//	<base>/20060102_150405/latest_weights.json
//	<base>/20060102_150405/thread_<n>_weights.json
//	<base>/20060102_150405/checkpoint_iteration.txt
const (
	checkpointDirFormat = "20060102_150405"
	latestWeightsFile   = "latest_weights.json"
	iterationFile       = "checkpoint_iteration.txt"
)

// NewCheckpointDir creates a fresh timestamped session directory under base.
func NewCheckpointDir(base string) (string, error) {
	dir := filepath.Join(base, time.Now().UTC().Format(checkpointDirFormat))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}
	return dir, nil
}

// WriteLatest persists the merged weight snapshot and the iteration counter.
func WriteLatest(dir string, snap model.WeightsSnapshot, iteration int) error {
	if err := writeJSON(filepath.Join(dir, latestWeightsFile), snap); err != nil {
		return err
	}
	data := []byte(strconv.Itoa(iteration) + "\n")
	return os.WriteFile(filepath.Join(dir, iterationFile), data, 0o644)
}

// WriteWorker persists one worker's local snapshot.
func WriteWorker(dir string, worker int, snap model.WeightsSnapshot) error {
	return writeJSON(filepath.Join(dir, fmt.Sprintf("thread_%d_weights.json", worker)), snap)
}

// ResumeState is what a checkpoint load hands back to the controller.
type ResumeState struct {
	Latest    model.WeightsSnapshot
	Workers   []model.WeightsSnapshot
	Iteration int
	Dir       string
}

// LoadLatestCheckpoint finds the newest session directory under base and
// reads its snapshot files. ok is false when no usable checkpoint exists.
func LoadLatestCheckpoint(base string) (ResumeState, bool, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return ResumeState{}, false, nil
		}
		return ResumeState{}, false, err
	}

	var sessions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(checkpointDirFormat, e.Name()); err == nil {
			sessions = append(sessions, e.Name())
		}
	}
	if len(sessions) == 0 {
		return ResumeState{}, false, nil
	}
	sort.Strings(sessions)

	// Walk newest-first past sessions that never wrote a snapshot.
	for i := len(sessions) - 1; i >= 0; i-- {
		dir := filepath.Join(base, sessions[i])
		state, ok, err := loadSession(dir)
		if err != nil {
			return ResumeState{}, false, err
		}
		if ok {
			return state, true, nil
		}
	}
	return ResumeState{}, false, nil
}

func loadSession(dir string) (ResumeState, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, latestWeightsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return ResumeState{}, false, nil
		}
		return ResumeState{}, false, err
	}

	state := ResumeState{Dir: dir}
	if err := json.Unmarshal(data, &state.Latest); err != nil {
		return ResumeState{}, false, fmt.Errorf("decode %s: %w", latestWeightsFile, err)
	}

	if raw, err := os.ReadFile(filepath.Join(dir, iterationFile)); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil {
			state.Iteration = n
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ResumeState{}, false, err
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "thread_") || !strings.HasSuffix(name, "_weights.json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ResumeState{}, false, err
		}
		var snap model.WeightsSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return ResumeState{}, false, fmt.Errorf("decode %s: %w", name, err)
		}
		state.Workers = append(state.Workers, snap)
	}
	return state, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
