// resolver.go resolves #include directives against the filesystem.
package preproc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mono-Game/mojoshader/pkg/preprocessor"
)

// Resolver implements the preprocessor's include capability pair over the
// filesystem. "..." includes search the including file's directory, then
// the user paths, then the system paths; <...> includes skip the local
// directory.
//
// Included units are fully consumed between Open and Close, so the resolver
// tracks the current directory and the open files as LIFO stacks.
type Resolver struct {
	UserPaths   []string
	SystemPaths []string
	dirStack    []string // directory of each translation unit still open
	openStack   []string // absolute paths, for circular-include detection
}

// NewResolver creates a resolver rooted at rootFile (may be empty for
// string input with no on-disk home).
func NewResolver(rootFile string, userPaths, systemPaths []string) *Resolver {
	r := &Resolver{UserPaths: userPaths, SystemPaths: systemPaths}
	if rootFile != "" {
		r.dirStack = append(r.dirStack, filepath.Dir(rootFile))
		if abs, err := filepath.Abs(rootFile); err == nil {
			r.openStack = append(r.openStack, abs)
		}
	}
	return r
}

// Open resolves and reads an included file. It satisfies
// preprocessor.IncludeOpen.
func (r *Resolver) Open(kind preprocessor.IncludeType, fname string, parent []byte) ([]byte, error) {
	path, err := r.resolve(kind, fname)
	if err != nil {
		return nil, err
	}

	abs, aerr := filepath.Abs(path)
	if aerr != nil {
		abs = path
	}
	for _, open := range r.openStack {
		if open == abs {
			return nil, fmt.Errorf("circular include of %s", fname)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r.dirStack = append(r.dirStack, filepath.Dir(path))
	r.openStack = append(r.openStack, abs)
	return data, nil
}

// Close releases the most recently opened include. It satisfies
// preprocessor.IncludeClose.
func (r *Resolver) Close(data []byte) {
	if n := len(r.dirStack); n > 0 {
		r.dirStack = r.dirStack[:n-1]
	}
	if n := len(r.openStack); n > 0 {
		r.openStack = r.openStack[:n-1]
	}
}

func (r *Resolver) resolve(kind preprocessor.IncludeType, fname string) (string, error) {
	var search []string
	if kind == preprocessor.IncludeLocal && len(r.dirStack) > 0 {
		search = append(search, r.dirStack[len(r.dirStack)-1])
	}
	search = append(search, r.UserPaths...)
	search = append(search, r.SystemPaths...)

	for _, dir := range search {
		full := filepath.Join(dir, fname)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", fmt.Errorf("include file not found: %s", fname)
}
