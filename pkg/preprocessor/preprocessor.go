// preprocessor.go drives the include stack: it wraps the lexer, recognizes
// directives, and hands surviving lexemes to the caller one pull at a time.
package preprocessor

import "fmt"

// failstrLen caps a latched error message.
const failstrLen = 256

// Preprocessor streams preprocessed tokens from a primary translation unit
// and whatever it includes. Create one with Start, pull with NextToken,
// release with End. A Preprocessor must be used from one goroutine at a
// time; independent instances are unrelated.
type Preprocessor struct {
	isfail  bool
	failstr string

	includeStack    *IncludeState
	conditionalPool *Conditional
	defines         DefineTable
	filenames       map[string]string

	open  IncludeOpen
	close IncludeClose
}

// Start builds a preprocessor over source. filename may be empty for an
// unnamed unit. open and close default to the filesystem pair when nil.
// The predefines are installed before any lexing; a duplicate among them
// fails Start.
func Start(filename string, source []byte, open IncludeOpen, close IncludeClose, defines []Define) (*Preprocessor, error) {
	if open == nil {
		open = FilesystemIncludeOpen
	}
	if close == nil {
		close = FilesystemIncludeClose
	}
	p := &Preprocessor{
		filenames: make(map[string]string),
		open:      open,
		close:     close,
	}
	for _, d := range defines {
		if err := p.defines.Add(d.Identifier, d.Definition); err != nil {
			return nil, err
		}
	}
	p.pushSource(filename, source, false)
	return p, nil
}

// End tears the preprocessor down: every remaining include frame is popped
// (invoking the close capability for frames that came from open), and the
// define table, filename cache and conditional pool are drained. The
// preprocessor must not be used afterwards.
func (p *Preprocessor) End() {
	for p.includeStack != nil {
		p.popSource()
	}
	p.defines.Clear()
	p.filenames = nil
	p.conditionalPool = nil
}

// SourcePosition reports the filename and line of the translation unit
// currently being lexed. The filename is "" when the unit is unnamed or the
// stack is empty.
func (p *Preprocessor) SourcePosition() (filename string, line uint) {
	if p.includeStack == nil {
		return "", 0
	}
	return p.includeStack.filename, p.includeStack.line
}

// NextToken pulls the next preprocessed lexeme. The returned bytes alias the
// active source buffer and are valid until the next call. A latched error is
// delivered first as a TOKEN_PREPROCESSING_ERROR lexeme carrying the message
// bytes; (nil, TOKEN_EOI) means the stream is exhausted.
func (p *Preprocessor) NextToken() ([]byte, Token) {
	for {
		if p.isfail {
			p.isfail = false
			return []byte(p.failstr), TOKEN_PREPROCESSING_ERROR
		}

		state := p.includeStack
		if state == nil {
			return nil, TOKEN_EOI
		}

		cond := state.conditionalStack
		skipping := cond != nil && cond.skipping

		token := lexToken(state)
		switch token {
		case TOKEN_EOI:
			if state.conditionalStack != nil {
				p.unterminatedConditional(state)
				continue // delivers the error next pull
			}
			p.popSource()
			continue // pick up after the parent's #include line

		case TOKEN_INCOMPLETE_COMMENT:
			p.fail("Incomplete multiline comment")
			continue

		case TOKEN_PP_IFDEF:
			p.handleIfdef(TOKEN_PP_IFDEF)
			continue
		case TOKEN_PP_IFNDEF:
			p.handleIfdef(TOKEN_PP_IFNDEF)
			continue
		case TOKEN_PP_ENDIF:
			p.handleEndif()
			continue
		case TOKEN_PP_ELSE:
			p.handleElse()
			continue
		}

		// Conditional directives must stay above this test; every other
		// lexeme inside a skipping region is discarded.
		if skipping {
			continue
		}

		switch token {
		case TOKEN_PP_INCLUDE:
			p.handleInclude()
			continue
		case TOKEN_PP_LINE:
			p.handleLine()
			continue
		case TOKEN_PP_ERROR:
			p.handleError()
			continue
		case TOKEN_PP_UNDEF:
			p.handleUndef()
			continue
		case TOKEN_PP_DEFINE:
			p.handleDefine()
			continue
		case TOKEN_PP_IF:
			p.handleUnimplemented("#if")
			continue
		case TOKEN_PP_ELIF:
			p.handleUnimplemented("#elif")
			continue
		}

		return state.tokenBytes(), token
	}
}

func (p *Preprocessor) pushSource(fname string, source []byte, included bool) {
	state := newIncludeState(p.internFilename(fname), source, included)
	state.next = p.includeStack
	p.includeStack = state
}

func (p *Preprocessor) popSource() {
	state := p.includeStack
	if state == nil {
		return
	}
	if state.included {
		p.close(state.source)
	}
	p.putConditionals(state.conditionalStack)
	p.includeStack = state.next
}

// fail latches reason for delivery on the next pull, truncated to the
// failure buffer. A later fail before the pull overwrites the slot.
func (p *Preprocessor) fail(reason string) {
	if len(reason) > failstrLen {
		reason = reason[:failstrLen]
	}
	p.failstr = reason
	p.isfail = true
}

func (p *Preprocessor) failf(format string, args ...any) {
	p.fail(fmt.Sprintf(format, args...))
}

// requireNewline peeks at the next lexeme and rewinds. Directives must be
// terminated by a newline; end of input or an incomplete comment also count
// (the latter is re-lexed and reported on its own).
func requireNewline(s *IncludeState) bool {
	m := s.mark()
	token := lexToken(s)
	s.rewind(m)
	if token == TOKEN_INCOMPLETE_COMMENT {
		return true
	}
	return token == Token('\n') || token == TOKEN_EOI
}

// consumeDirectiveLine lexes up to (not including) the line terminator and
// returns the byte range [start, end) spanning the first through last lexeme
// on the line, or start < 0 when the line was empty.
func consumeDirectiveLine(s *IncludeState) (start, end int) {
	start = -1
	var m lexerMark
	for done := false; !done; {
		m = s.mark()
		switch lexToken(s) {
		case Token('\n'), TOKEN_INCOMPLETE_COMMENT, TOKEN_EOI:
			done = true
		default:
			if start < 0 {
				start = s.tokenStart
			}
		}
	}
	s.rewind(m)
	return start, s.pos
}

func (p *Preprocessor) handleInclude() {
	state := p.includeStack
	token := lexToken(state)

	var kind IncludeType
	var filename string
	bogus := false

	switch token {
	case TOKEN_STRING_LITERAL:
		kind = IncludeLocal
		tok := state.tokenBytes()
		filename = string(tok[1 : len(tok)-1])

	case Token('<'):
		kind = IncludeSystem
		// The lexer is no use here: every byte up to the '>' belongs to
		// the filename.
		start := state.pos
		for {
			if state.bytesLeft() == 0 {
				bogus = true
				break
			}
			ch := state.source[state.pos]
			if ch == '\r' || ch == '\n' {
				bogus = true
				break
			}
			state.pos++
			if ch == '>' {
				break
			}
		}
		if !bogus {
			filename = string(state.source[start : state.pos-1])
		}

	default:
		bogus = true
	}

	if !bogus {
		bogus = !requireNewline(state)
	}
	if bogus {
		p.fail("Invalid #include directive")
		return
	}

	data, err := p.open(kind, filename, state.source)
	if err != nil {
		p.fail("Include callback failed")
		return
	}
	p.pushSource(filename, data, true)
}

func (p *Preprocessor) handleLine() {
	state := p.includeStack

	if lexToken(state) != TOKEN_INT_LITERAL {
		p.fail("Invalid #line directive")
		return
	}
	var linenum uint
	for _, c := range state.tokenBytes() {
		if c < '0' || c > '9' {
			break
		}
		linenum = linenum*10 + uint(c-'0')
	}

	if lexToken(state) != TOKEN_STRING_LITERAL {
		p.fail("Invalid #line directive")
		return
	}
	tok := state.tokenBytes()
	fname := string(tok[1 : len(tok)-1])

	if !requireNewline(state) {
		p.fail("Invalid #line directive")
		return
	}

	state.filename = p.internFilename(fname)
	state.line = linenum
}

// handleError captures the raw bytes from the first lexeme after the #error
// keyword through the last lexeme before the line terminator. The
// terminator itself stays in the stream.
func (p *Preprocessor) handleError() {
	state := p.includeStack
	start, end := consumeDirectiveLine(state)

	msg := ""
	if start >= 0 {
		msg = string(state.source[start:end])
	}
	const prefix = "#error "
	if avail := failstrLen - len(prefix); len(msg) > avail {
		msg = msg[:avail]
	}
	p.fail(prefix + msg)
}

func (p *Preprocessor) handleUndef() {
	state := p.includeStack

	if lexToken(state) != TOKEN_IDENTIFIER {
		p.fail("Macro names must be identifiers")
		return
	}
	sym := string(state.tokenBytes())

	if !requireNewline(state) {
		p.fail("Invalid #undef directive")
		return
	}

	p.defines.Remove(sym)
}

// handleDefine installs an object-like macro: the identifier binds to the
// raw remainder of the line. Parameterized macros are not part of this
// preprocessor's surface.
func (p *Preprocessor) handleDefine() {
	state := p.includeStack

	if lexToken(state) != TOKEN_IDENTIFIER {
		p.fail("Macro names must be identifiers")
		return
	}
	sym := string(state.tokenBytes())

	// A '(' glued to the name would be a function-like macro.
	funcLike := state.bytesLeft() > 0 && state.source[state.pos] == '('

	start, end := consumeDirectiveLine(state)

	if funcLike {
		p.fail("#define with parameters is not supported")
		return
	}

	definition := ""
	if start >= 0 {
		definition = string(state.source[start:end])
	}
	if err := p.defines.Add(sym, definition); err != nil {
		p.fail(err.Error())
	}
}

func (p *Preprocessor) handleIfdef(kind Token) {
	state := p.includeStack

	if lexToken(state) != TOKEN_IDENTIFIER {
		p.fail("Macro names must be identifiers")
		return
	}
	sym := string(state.tokenBytes())

	if !requireNewline(state) {
		if kind == TOKEN_PP_IFDEF {
			p.fail("Invalid #ifdef directive")
		} else {
			p.fail("Invalid #ifndef directive")
		}
		return
	}

	prev := state.conditionalStack
	skipping := prev != nil && prev.skipping
	if !skipping {
		_, found := p.defines.Find(sym)
		if kind == TOKEN_PP_IFDEF {
			skipping = !found
		} else {
			skipping = found
		}
	}

	cond := p.getConditional()
	cond.kind = kind
	cond.linenum = state.line
	cond.skipping = skipping
	cond.chosen = !skipping
	cond.next = prev
	state.conditionalStack = cond
}

// handleElse flips the top conditional: the else arm runs iff no prior arm
// ran.
func (p *Preprocessor) handleElse() {
	state := p.includeStack
	cond := state.conditionalStack

	switch {
	case !requireNewline(state):
		p.fail("Invalid #else directive")
	case cond == nil:
		p.fail("#else without #if")
	case cond.kind == TOKEN_PP_ELSE:
		p.fail("#else after #else")
	default:
		cond.kind = TOKEN_PP_ELSE
		outer := cond.next
		cond.skipping = cond.chosen || (outer != nil && outer.skipping)
		cond.chosen = true
	}
}

func (p *Preprocessor) handleEndif() {
	state := p.includeStack
	cond := state.conditionalStack

	switch {
	case !requireNewline(state):
		p.fail("Invalid #endif directive")
	case cond == nil:
		p.fail("Unmatched #endif")
	default:
		state.conditionalStack = cond.next
		cond.next = nil
		p.putConditionals(cond)
	}
}

// unterminatedConditional reports one still-open frame at end of input and
// pops it; the dispatcher loops so each unclosed frame gets its own error.
func (p *Preprocessor) unterminatedConditional(state *IncludeState) {
	cond := state.conditionalStack
	switch cond.kind {
	case TOKEN_PP_IF:
		p.fail("Unterminated #if")
	case TOKEN_PP_IFDEF:
		p.fail("Unterminated #ifdef")
	case TOKEN_PP_IFNDEF:
		p.fail("Unterminated #ifndef")
	case TOKEN_PP_ELSE:
		p.fail("Unterminated #else")
	default:
		p.fail("Unterminated #elif")
	}

	state.conditionalStack = cond.next
	cond.next = nil
	p.putConditionals(cond)
}

// handleUnimplemented rejects a directive this preprocessor deliberately
// does not evaluate, consuming its line so the condition text never reaches
// the caller as ordinary tokens.
func (p *Preprocessor) handleUnimplemented(directive string) {
	consumeDirectiveLine(p.includeStack)
	p.failf("%s not implemented", directive)
}
