package preprocessor

// Conditional is one frame of a translation unit's #if stack.
type Conditional struct {
	kind     Token // TOKEN_PP_IFDEF, TOKEN_PP_IFNDEF or TOKEN_PP_ELSE
	linenum  uint  // line the conditional was opened on
	skipping bool
	chosen   bool // some arm of this conditional has been selected
	next     *Conditional
}

// IncludeState is one active translation unit on the include stack. The
// lexer operates on the topmost frame's cursor.
type IncludeState struct {
	filename         string // interned; "" for an unnamed root unit
	included         bool   // obtained via the include-open capability
	source           []byte
	pos              int // cursor: next byte to scan
	tokenStart       int // first byte of the current lexeme
	line             uint
	atBOL            bool // only whitespace seen so far on this line
	conditionalStack *Conditional
	next             *IncludeState
}

func newIncludeState(filename string, source []byte, included bool) *IncludeState {
	return &IncludeState{
		filename: filename,
		included: included,
		source:   source,
		line:     1,
		atBOL:    true,
	}
}

// bytesLeft reports how much input remains ahead of the cursor.
func (s *IncludeState) bytesLeft() int {
	return len(s.source) - s.pos
}

// tokenBytes returns the bytes of the lexeme most recently scanned.
func (s *IncludeState) tokenBytes() []byte {
	return s.source[s.tokenStart:s.pos]
}

// lexerMark captures the rewindable portion of an IncludeState so a
// directive handler can peek at the next lexeme and then put it back.
type lexerMark struct {
	pos        int
	tokenStart int
	line       uint
	atBOL      bool
}

func (s *IncludeState) mark() lexerMark {
	return lexerMark{pos: s.pos, tokenStart: s.tokenStart, line: s.line, atBOL: s.atBOL}
}

func (s *IncludeState) rewind(m lexerMark) {
	s.pos = m.pos
	s.tokenStart = m.tokenStart
	s.line = m.line
	s.atBOL = m.atBOL
}

// getConditional issues a zeroed frame from the free-list, growing it when
// the list is empty.
func (p *Preprocessor) getConditional() *Conditional {
	cond := p.conditionalPool
	if cond != nil {
		p.conditionalPool = cond.next
		*cond = Conditional{}
	} else {
		cond = &Conditional{}
	}
	return cond
}

// putConditionals prepends a chain of frames back onto the free-list.
func (p *Preprocessor) putConditionals(item *Conditional) {
	for item != nil {
		next := item.next
		item.next = p.conditionalPool
		p.conditionalPool = item
		item = next
	}
}

// internFilename returns the canonical string for fname, so tokens and
// include frames share one allocation per distinct name. The cache lives
// until End.
func (p *Preprocessor) internFilename(fname string) string {
	if fname == "" {
		return ""
	}
	if cached, ok := p.filenames[fname]; ok {
		return cached
	}
	p.filenames[fname] = fname
	return fname
}
