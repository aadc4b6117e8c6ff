//go:build !windows

package preprocessor

// endline is the line ending emitted by the flatten pass.
var endline = []byte{'\n'}
