// Package preproc wraps the core preprocessor with file reading, predefine
// handling, and search-path include resolution.
package preproc

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Mono-Game/mojoshader/pkg/preprocessor"
)

// Options configures a preprocessing run.
type Options struct {
	IncludePaths []string          // -I directories
	SystemPaths  []string          // --isystem directories
	Defines      map[string]string // -D macros (name -> value, empty string for simple define)
	Undefines    []string          // -U macros
}

// Predefines converts the Defines map, minus the Undefines, into the
// predefine list the core expects, in deterministic order.
func (o *Options) Predefines() []preprocessor.Define {
	if o == nil {
		return nil
	}
	undef := make(map[string]bool, len(o.Undefines))
	for _, u := range o.Undefines {
		undef[u] = true
	}
	var defines []preprocessor.Define
	for name, value := range o.Defines {
		if undef[name] {
			continue
		}
		defines = append(defines, preprocessor.Define{Identifier: name, Definition: value})
	}
	sort.Slice(defines, func(i, j int) bool {
		return defines[i].Identifier < defines[j].Identifier
	})
	return defines
}

// ParseDefineFlag splits a command-line style NAME or NAME=VALUE define.
func ParseDefineFlag(flag string) (name, value string) {
	if idx := strings.Index(flag, "="); idx >= 0 {
		return flag[:idx], flag[idx+1:]
	}
	return flag, ""
}

// Preprocess reads and preprocesses the named file, resolving includes
// against the file's directory and the configured search paths. The
// returned errors are the collected preprocessing errors (a duplicate
// predefine surfaces there too); err reports an unreadable input.
func Preprocess(filename string, opts *Options) (string, []preprocessor.Error, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return PreprocessString(string(source), filename, opts)
}

// PreprocessString preprocesses source directly, with filename used for
// relative include resolution and error positions.
func PreprocessString(source, filename string, opts *Options) (string, []preprocessor.Error, error) {
	var userPaths, systemPaths []string
	if opts != nil {
		userPaths = opts.IncludePaths
		systemPaths = opts.SystemPaths
	}
	resolver := NewResolver(filename, userPaths, systemPaths)
	data := preprocessor.Preprocess(filename, []byte(source), opts.Predefines(), resolver.Open, resolver.Close)
	return string(data.Output), data.Errors, nil
}
