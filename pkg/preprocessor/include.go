// include.go declares the include-resolution capability consumed by the
// preprocessor, plus the plain filesystem implementation used by default.
package preprocessor

import "os"

// IncludeType distinguishes the two #include forms.
type IncludeType int

const (
	IncludeLocal  IncludeType = iota // #include "file"
	IncludeSystem                    // #include <file>
)

// IncludeOpen resolves an #include and returns the included unit's bytes.
// parent is the source of the including translation unit, letting a resolver
// disambiguate relative includes. The returned bytes stay alive until the
// matching IncludeClose call.
type IncludeOpen func(kind IncludeType, filename string, parent []byte) ([]byte, error)

// IncludeClose releases bytes previously returned by the paired IncludeOpen.
type IncludeClose func(data []byte)

// Define is a caller-supplied predefined macro.
type Define struct {
	Identifier string
	Definition string
}

// FilesystemIncludeOpen reads the named file relative to the process working
// directory, ignoring the include kind and parent source.
func FilesystemIncludeOpen(kind IncludeType, filename string, parent []byte) ([]byte, error) {
	return os.ReadFile(filename)
}

// FilesystemIncludeClose is the no-op counterpart of FilesystemIncludeOpen.
func FilesystemIncludeClose(data []byte) {}
