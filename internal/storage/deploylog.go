package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"poolrefuel/internal/model"
)

// DeployLogWriter persists deployment logs as YAML files, one timestamped
// file per run plus a per-chain latest copy.
type DeployLogWriter struct {
	dir string
}

func NewDeployLogWriter(dir string) *DeployLogWriter {
	return &DeployLogWriter{dir: dir}
}

// Save writes the log and returns the timestamped file path.
func (w *DeployLogWriter) Save(log *model.DeploymentLog) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	chain := log.DeploymentInfo.Chain
	if chain == "" {
		return "", fmt.Errorf("deployment log has no chain name")
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	path := filepath.Join(w.dir, fmt.Sprintf("deployment_%s_%s.yaml", chain, stamp))
	latest := filepath.Join(w.dir, fmt.Sprintf("deployment_%s_latest.yaml", chain))

	if err := WriteDeploymentLog(path, log); err != nil {
		return "", err
	}
	if err := WriteDeploymentLog(latest, log); err != nil {
		return "", err
	}

	return path, nil
}

// WriteDeploymentLog writes the log to path atomically via a tmp file.
func WriteDeploymentLog(path string, log *model.DeploymentLog) error {
	data, err := yaml.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal deployment log: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write deployment log tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename deployment log: %w", err)
	}

	return nil
}

// LoadDeploymentLog reads a deployment log from path.
func LoadDeploymentLog(path string) (*model.DeploymentLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment log: %w", err)
	}

	var log model.DeploymentLog
	if err := yaml.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse deployment log: %w", err)
	}

	return &log, nil
}

// ListDeploymentLogs returns the timestamped deployment logs in dir, newest
// last. The per-chain latest copies are skipped; chain filters when set.
func ListDeploymentLogs(dir, chain string) ([]string, error) {
	pattern := "deployment_*.yaml"
	if chain != "" {
		pattern = fmt.Sprintf("deployment_%s_*.yaml", chain)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("list deployment logs: %w", err)
	}

	logs := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasSuffix(m, "_latest.yaml") {
			continue
		}
		logs = append(logs, m)
	}
	sort.Strings(logs)

	return logs, nil
}
