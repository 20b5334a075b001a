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
	"os"

	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/internal/tracing/storage"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// SpanStorePath picks the span database: override if set, then the first
// sqlite exporter in cfg, then the default data path.
func SpanStorePath(cfg *config.Config, override string) string {
	if override != "" {
		return config.ExpandHome(override)
	}
	if cfg != nil {
		for _, exp := range cfg.Tracing.Exporters {
			if exp.Type == tracing.ExporterSQLite && exp.Path != "" {
				return exp.Path
			}
		}
	}
	return config.DefaultStoragePath()
}

// OpenSpanStore opens an existing span database. A missing file is a
// NotFoundError rather than a new empty database.
func OpenSpanStore(path string) (*storage.SQLiteStore, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, &tberrors.NotFoundError{Resource: "span database", ID: path}
		}
	}
	key, _ := storage.LookupKey()
	return storage.New(storage.Config{
		Path:          path,
		EncryptionKey: key,
	})
}
