// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"io"
	"log/slog"
	"os"

	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/log"
)

// LoadConfig loads configuration from --config, or from the default config
// path when that file exists. --verbose lowers the log level to debug.
func LoadConfig() (*config.Config, error) {
	path := GetConfigPath()
	if path == "" {
		if def, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if GetVerbose() {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// NewLogger builds the host logger. Output goes to stderr so stdout stays
// clean for results.
func NewLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	logCfg := cfg.Log
	logCfg.Output = stderr
	if logCfg.Format == "" {
		logCfg.Format = log.FormatText
	}
	return log.New(&logCfg)
}
