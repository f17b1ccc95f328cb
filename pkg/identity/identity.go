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

// Package identity derives the stable project identity and cache
// directory name described in spec §3.1/§6, and loads the
// .cppindex/project.yaml configuration that accompanies it — generalized
// from cmd/cie/config.go's DefaultConfig(projectID) pattern to derive the
// identity rather than take it as a CLI flag.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Derive computes the ProjectIdentity for (sourceDir, configPath) per spec
// §6: hash = SHA-256(absolute_source_dir|absolute_config_path_or_empty)[:16],
// resolved to absolute canonical form first so relative/absolute inputs
// don't collide.
func Derive(sourceDir, configPath string) (symbol.ProjectIdentity, error) {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return symbol.ProjectIdentity{}, fmt.Errorf("resolve source dir: %w", err)
	}
	absSource = filepath.Clean(absSource)

	var absConfig string
	if configPath != "" {
		absConfig, err = filepath.Abs(configPath)
		if err != nil {
			return symbol.ProjectIdentity{}, fmt.Errorf("resolve config path: %w", err)
		}
		absConfig = filepath.Clean(absConfig)
	}

	sum := sha256.Sum256([]byte(absSource + "|" + absConfig))
	hash := hex.EncodeToString(sum[:])[:16]

	return symbol.ProjectIdentity{
		SourceDirectory: absSource,
		ConfigFilePath:  absConfig,
		Hash:            hash,
	}, nil
}

// CacheDirName returns "<project_dir_basename>_<hash>", the directory
// name (not a full path) under the configured cache root.
func CacheDirName(id symbol.ProjectIdentity) string {
	base := filepath.Base(id.SourceDirectory)
	return fmt.Sprintf("%s_%s", base, id.Hash)
}

// CachePath joins cacheRoot with the derived directory name.
func CachePath(cacheRoot string, id symbol.ProjectIdentity) string {
	return filepath.Join(cacheRoot, CacheDirName(id))
}
