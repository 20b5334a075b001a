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

package completion

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/config"
)

// ConfigEnv names the variable that points completion at a config file
// when --config is not on the command line being completed.
const ConfigEnv = "TRACEBRIDGE_CONFIG"

// CheckFilePermissions reports whether path is private to its owner
// (mode <= 0600). Exporter headers in the config may carry credentials.
func CheckFilePermissions(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.Mode().Perm() <= 0600
}

// LoadConfigForCompletion loads configuration for completion. It returns a
// nil config without error when the file is readable by others, and the
// default configuration when no file exists.
func LoadConfigForCompletion() (*config.Config, error) {
	configPath := shared.GetConfigPath()
	if configPath == "" {
		configPath = os.Getenv(ConfigEnv)
	}
	if configPath == "" {
		def, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(def); err == nil {
			configPath = def
		}
	}

	if configPath != "" && !CheckFilePermissions(configPath) {
		return nil, nil
	}
	return config.Load(configPath)
}

// SafeCompletionWrapper runs fn, turning a panic or nil result into an
// empty completion list.
func SafeCompletionWrapper(fn func() ([]string, cobra.ShellCompDirective)) (results []string, directive cobra.ShellCompDirective) {
	results = []string{}
	directive = cobra.ShellCompDirectiveNoFileComp

	defer func() {
		if r := recover(); r != nil {
			results = []string{}
			directive = cobra.ShellCompDirectiveNoFileComp
		}
	}()

	results, directive = fn()
	if results == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return results, directive
}
