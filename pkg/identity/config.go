// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk .cppindex/project.yaml shape, mirroring
// cmd/cie/config.go's Config struct (yaml tags, defaults from
// DefaultConfig). No environment variable overrides any field.
type Config struct {
	Version int `yaml:"version"`

	Project struct {
		SourceDir        string `yaml:"source_dir"`
		ConfigFilePath   string `yaml:"config_file_path,omitempty"`
		CompileCommands  string `yaml:"compile_commands,omitempty"`
		IncludeDependencies bool `yaml:"include_dependencies"`
		AutoRefresh      bool   `yaml:"auto_refresh"`
	} `yaml:"project"`

	Backend struct {
		PreferPrimary bool `yaml:"prefer_primary"`
	} `yaml:"backend"`

	ErrorRate struct {
		WindowSeconds int     `yaml:"window_seconds"`
		Threshold     float64 `yaml:"threshold"`
	} `yaml:"error_rate"`

	Indexing struct {
		MaxParseRetries int      `yaml:"max_parse_retries"`
		IncludePatterns []string `yaml:"include_patterns,omitempty"`
		ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
	} `yaml:"indexing"`

	Query struct {
		BehaviorPolicy string `yaml:"behavior_policy"` // allow_partial | block | reject
	} `yaml:"query"`

	Maintenance struct {
		VacuumThresholdMB int64 `yaml:"vacuum_threshold_mb"`
		VacuumMinWasteMB  int64 `yaml:"vacuum_min_waste_mb"`
	} `yaml:"maintenance"`
}

// DefaultConfig mirrors cmd/cie/config.go's DefaultConfig(projectID)
// constructor, seeded with the values spec §6's configuration-surface
// table names.
func DefaultConfig(sourceDir string) *Config {
	cfg := &Config{Version: 1}
	cfg.Project.SourceDir = sourceDir
	cfg.Project.IncludeDependencies = false
	cfg.Project.AutoRefresh = false
	cfg.Backend.PreferPrimary = true
	cfg.ErrorRate.WindowSeconds = 300
	cfg.ErrorRate.Threshold = 0.05
	cfg.Indexing.MaxParseRetries = 3
	cfg.Query.BehaviorPolicy = "allow_partial"
	cfg.Maintenance.VacuumThresholdMB = 256
	cfg.Maintenance.VacuumMinWasteMB = 64
	return cfg
}

// Load reads path; if it does not exist, returns DefaultConfig(sourceDir)
// without error (first run convenience), mirroring the teacher's config
// loading tolerance for a missing project.yaml.
func Load(path, sourceDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(sourceDir), nil
		}
		return nil, err
	}
	cfg := DefaultConfig(sourceDir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
