// flatten.go turns the pull stream into one reformatted text blob plus a
// collected error list.
package preprocessor

const bufferLen = 64 * 1024

type bufferNode struct {
	data  [bufferLen]byte
	bytes int
	next  *bufferNode
}

// buffer accumulates output in fixed-size chunks so emitting never moves
// bytes already written.
type buffer struct {
	totalBytes int
	head       bufferNode
	tail       *bufferNode
}

func (b *buffer) init() {
	b.totalBytes = 0
	b.head.bytes = 0
	b.head.next = nil
	b.tail = &b.head
}

func (b *buffer) add(data []byte) {
	b.totalBytes += len(data)
	for len(data) > 0 {
		avail := bufferLen - b.tail.bytes
		cpy := len(data)
		if cpy > avail {
			cpy = avail
		}
		copy(b.tail.data[b.tail.bytes:], data[:cpy])
		b.tail.bytes += cpy
		data = data[cpy:]
		if b.tail.bytes == bufferLen {
			node := &bufferNode{}
			b.tail.next = node
			b.tail = node
		}
	}
}

var indentSpaces = []byte("    ")

// indent writes n indent units on a fresh line, or a single joining space
// mid-line.
func (b *buffer) indent(n int, newline bool) {
	if newline {
		for ; n > 0; n-- {
			b.add(indentSpaces)
		}
	} else {
		b.add(indentSpaces[:1])
	}
}

// flatten concatenates the chunks into one contiguous slice of exactly
// totalBytes bytes.
func (b *buffer) flatten() []byte {
	out := make([]byte, 0, b.totalBytes)
	for node := &b.head; node != nil; node = node.next {
		out = append(out, node.data[:node.bytes]...)
	}
	return out
}

// Error is one preprocessing error collected by Preprocess.
type Error struct {
	Message  string
	Filename string
	Position uint // source line at the time the error surfaced
}

// PreprocessData is the result of Preprocess.
type PreprocessData struct {
	Output []byte
	Errors []Error
}

// Preprocess runs the whole pull stream over source and flattens it into
// reformatted text. open and close default to the filesystem pair when nil.
// Errors are collected in arrival order and never appear in the output.
//
// The reformatting mimics Microsoft's preprocessor: raw newlines are
// ignored, and fresh lines are inserted around braces and after semicolons
// so the result stays mostly readable instead of a stream of tokens.
func Preprocess(filename string, source []byte, defines []Define, open IncludeOpen, close IncludeClose) *PreprocessData {
	pp, err := Start(filename, source, open, close, defines)
	if err != nil {
		return &PreprocessData{Errors: []Error{{Message: err.Error(), Filename: filename}}}
	}
	defer pp.End()

	var buf buffer
	buf.init()
	var errors []Error

	nl := true
	indent := 0
	for {
		tokstr, token := pp.NextToken()
		if token == TOKEN_EOI {
			break
		}

		isnewline := false

		switch {
		case token == Token('\n'):
			isnewline = nl

		case token == Token('}') || token == Token(';'):
			if token == Token('}') && indent > 0 {
				indent--
			}
			buf.indent(indent, nl)
			buf.add(tokstr)
			buf.add(endline)
			isnewline = true

		case token == Token('{'):
			buf.add(endline)
			buf.indent(indent, true)
			buf.add(tokstr)
			buf.add(endline)
			indent++
			isnewline = true

		case token == TOKEN_PREPROCESSING_ERROR:
			fname, pos := pp.SourcePosition()
			errors = append(errors, Error{
				Message:  string(tokstr),
				Filename: fname,
				Position: pos,
			})

		default:
			buf.indent(indent, nl)
			buf.add(tokstr)
		}

		nl = isnewline
	}

	return &PreprocessData{Output: buf.flatten(), Errors: errors}
}
