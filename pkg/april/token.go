package april

import (
	"fmt"
	"strings"
	"time"
)

// TokenFlags is the flag bitset attached to a Token. Bits the binding does
// not know about are kept as-is.
type TokenFlags uint32

const (
	// TokenWordBoundary marks the start of a new word. In English this is
	// equivalent to the token text starting with a space.
	TokenWordBoundary TokenFlags = 1 << 0
	// TokenSentenceEnd marks the end of a sentence (".", "!" or "?").
	// Some models never emit it.
	TokenSentenceEnd TokenFlags = 1 << 1

	knownTokenFlags = TokenWordBoundary | TokenSentenceEnd
)

// Has reports whether all bits of f are set.
func (t TokenFlags) Has(f TokenFlags) bool {
	return t&f == f
}

func (t TokenFlags) String() string {
	if t == 0 {
		return "0"
	}
	var parts []string
	if t.Has(TokenWordBoundary) {
		parts = append(parts, "WORD_BOUNDARY")
	}
	if t.Has(TokenSentenceEnd) {
		parts = append(parts, "SENTENCE_END")
	}
	if rest := t &^ knownTokenFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Token is a single recognized token. It owns its text; nothing in it
// refers to engine memory.
type Token struct {
	Text    string
	Logprob float32
	Flags   TokenFlags
	// TimeMS is the offset of the token from the start of the session audio.
	TimeMS uint64
}

// NewToken builds a Token from raw engine fields. Text that is not valid
// UTF-8 is repaired with U+FFFD instead of being rejected.
func NewToken(text string, logprob float32, flags uint32, timeMS uint64) Token {
	return Token{
		Text:    strings.ToValidUTF8(text, "\uFFFD"),
		Logprob: logprob,
		Flags:   TokenFlags(flags),
		TimeMS:  timeMS,
	}
}

// Offset returns TimeMS as a duration.
func (t Token) Offset() time.Duration {
	return time.Duration(t.TimeMS) * time.Millisecond
}

// Tokens is the token sequence of one result.
type Tokens []Token

// Text concatenates the token texts.
func (ts Tokens) Text() string {
	var b strings.Builder
	for _, t := range ts {
		b.WriteString(t.Text)
	}
	return b.String()
}

func (ts Tokens) String() string {
	return ts.Text()
}
