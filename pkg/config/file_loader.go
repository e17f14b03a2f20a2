/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/carverauto/ewspoller/pkg/logger"
)

var (
	// ErrConfigFileMissing is returned when the configuration file does not exist.
	ErrConfigFileMissing = errors.New("configuration file not found")
	errEmptyConfigFile   = errors.New("configuration file is empty")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileConfigLoader reads a JSON configuration document from disk. A leading
// UTF-8 byte order mark is ignored.
type FileConfigLoader struct {
	logger logger.Logger
}

// NewFileConfigLoader returns a loader that logs the file it read.
func NewFileConfigLoader(log logger.Logger) *FileConfigLoader {
	return &FileConfigLoader{logger: log}
}

// Load implements ConfigLoader.
func (f *FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrConfigFileMissing, path)
	}

	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s", errEmptyConfigFile, path)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.logger != nil {
		f.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Loaded configuration file")
	}

	return nil
}
