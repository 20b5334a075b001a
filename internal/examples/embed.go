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

// Package examples embeds sample guest scripts so they can be listed,
// copied and run without a checkout.
package examples

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scheme prefixes a script argument that names an embedded example
// instead of a file, e.g. "example:handler".
const Scheme = "example:"

const ext = ".js"

//go:embed *.js
var embeddedFS embed.FS

// Example describes an embedded guest script.
type Example struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FilePath    string `json:"file"`
}

// List returns the embedded examples sorted by name.
func List() ([]Example, error) {
	entries, err := fs.ReadDir(embeddedFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded examples: %w", err)
	}

	var examples []Example
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		content, err := embeddedFS.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read example %s: %w", entry.Name(), err)
		}
		examples = append(examples, Example{
			Name:        strings.TrimSuffix(entry.Name(), ext),
			Description: description(content),
			FilePath:    entry.Name(),
		})
	}

	sort.Slice(examples, func(i, j int) bool { return examples[i].Name < examples[j].Name })
	return examples, nil
}

// Get returns the source of the named example.
func Get(name string) ([]byte, error) {
	content, err := embeddedFS.ReadFile(name + ext)
	if err != nil {
		return nil, fmt.Errorf("example %q not found: %w", name, err)
	}
	return content, nil
}

// Exists reports whether an example with the given name is embedded.
func Exists(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}
	_, err := fs.Stat(embeddedFS, name+ext)
	return err == nil
}

// Resolve reports whether ref uses Scheme and returns the example name.
func Resolve(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, Scheme)
	if !ok {
		return "", false
	}
	return name, true
}

// CopyTo writes an example to destPath, creating parent directories.
func CopyTo(name, destPath string) error {
	content, err := Get(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.WriteFile(destPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write example file: %w", err)
	}
	return nil
}

// description is the text of the leading line comment.
func description(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() {
		return ""
	}
	line := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(line, "//") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "//"))
}
