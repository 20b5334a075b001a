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
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/examples"
)

const (
	maxScriptFiles = 100
	maxSearchDepth = 2
)

// scriptFile is a discovered guest script.
type scriptFile struct {
	path    string
	modTime int64
}

// CompleteScripts provides completion for guest script paths: .js files in
// the current directory and up to two levels below, newest first. Arguments
// starting with "example:" complete to embedded example names.
func CompleteScripts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if strings.HasPrefix(toComplete, examples.Scheme) {
			return exampleRefs(toComplete), cobra.ShellCompDirectiveNoFileComp
		}

		files := discoverScripts(os.DirFS("."), maxSearchDepth)
		if len(files) == 0 {
			return []string{"js"}, cobra.ShellCompDirectiveFilterFileExt
		}

		paths := make([]string, 0, len(files))
		for _, f := range files {
			if strings.HasPrefix(f.path, toComplete) {
				paths = append(paths, f.path)
			}
		}
		if toComplete != "" && strings.HasPrefix(examples.Scheme, toComplete) {
			paths = append(paths, exampleRefs(toComplete)...)
		}
		return paths, cobra.ShellCompDirectiveDefault
	})
}

// CompleteExampleNames provides completion for embedded example names.
func CompleteExampleNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		list, err := examples.List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, ex := range list {
			if strings.HasPrefix(ex.Name, toComplete) {
				names = append(names, ex.Name+"\t"+ex.Description)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// exampleRefs lists "example:<name>" arguments starting with prefix.
func exampleRefs(prefix string) []string {
	list, err := examples.List()
	if err != nil {
		return nil
	}
	var refs []string
	for _, ex := range list {
		ref := examples.Scheme + ex.Name
		if strings.HasPrefix(ref, prefix) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// discoverScripts finds .js files in fsys no deeper than maxDepth
// directories. Hidden directories, node_modules and symlinks are skipped.
func discoverScripts(fsys fs.FS, maxDepth int) []scriptFile {
	var files []scriptFile
	_ = doublestar.GlobWalk(fsys, "**/*.js", func(path string, d fs.DirEntry) error {
		if strings.Count(path, "/") > maxDepth {
			return nil
		}
		for _, part := range strings.Split(path, "/")[:strings.Count(path, "/")] {
			if strings.HasPrefix(part, ".") || part == "node_modules" {
				return nil
			}
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, scriptFile{path: path, modTime: info.ModTime().UnixNano()})
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithNoFollow())

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime != files[j].modTime {
			return files[i].modTime > files[j].modTime
		}
		return files[i].path < files[j].path
	})
	if len(files) > maxScriptFiles {
		files = files[:maxScriptFiles]
	}
	return files
}
