package kn15

import (
	"strconv"
	"strings"
)

// markerPrefix opens every section after Section One.
const markerPrefix = '9'

// cursor walks an immutable slice of groups with one group of lookahead.
type cursor struct {
	tokens []string
	pos    int
}

func newCursor(telegram string) *cursor {
	s := strings.TrimSpace(telegram)
	s = strings.TrimSpace(strings.TrimSuffix(s, "="))
	return &cursor{tokens: strings.Fields(s)}
}

// next consumes one group. section and expected describe what the caller
// wanted, for the error raised at end of input.
func (c *cursor) next(section, expected string) (string, error) {
	if c.pos >= len(c.tokens) {
		return "", &ParseError{
			Kind:     KindMissingSection,
			Section:  section,
			Expected: expected,
			Message:  "unexpected end of telegram",
			Consumed: c.consumed(),
		}
	}
	tok := c.tokens[c.pos]
	c.pos++
	return tok, nil
}

func (c *cursor) peek() (string, bool) {
	if c.pos >= len(c.tokens) {
		return "", false
	}
	return c.tokens[c.pos], true
}

// peekPrefix reports whether the next group starts with prefix.
func (c *cursor) peekPrefix(prefix string) bool {
	tok, ok := c.peek()
	return ok && strings.HasPrefix(tok, prefix)
}

// skipToMarker drops groups until the next section marker and returns them.
func (c *cursor) skipToMarker() []string {
	start := c.pos
	for c.pos < len(c.tokens) && !isMarker(c.tokens[c.pos]) {
		c.pos++
	}
	return c.tokens[start:c.pos]
}

func (c *cursor) consumed() []string {
	return append([]string(nil), c.tokens[:c.pos]...)
}

func (c *cursor) done() bool {
	return c.pos >= len(c.tokens)
}

func isMarker(tok string) bool {
	return tok != "" && tok[0] == markerPrefix
}

// ValidStationCode reports whether code has the five-digit form telegrams use.
func ValidStationCode(code string) bool {
	return len(code) == 5 && isDigits(code)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// group validates a 5-digit group with the given leading digit.
func group(tok string, prefix byte, section, expected string) error {
	if len(tok) != 5 || !isDigits(tok) {
		return &ParseError{
			Kind:     KindInvalidToken,
			Section:  section,
			Token:    tok,
			Expected: expected,
			Message:  "group must be 5 digits",
		}
	}
	if tok[0] != prefix {
		return &ParseError{
			Kind:     KindInvalidToken,
			Section:  section,
			Token:    tok,
			Expected: expected,
			Message:  "unexpected leading digit " + string(tok[0]),
		}
	}
	return nil
}

// field converts tok[from:to] to an int. Callers have already validated
// tok with group, so the conversion cannot fail.
func field(tok string, from, to int) int {
	n, _ := strconv.Atoi(tok[from:to])
	return n
}

// signedLevel applies the telegram convention for levels below gauge zero:
// values above 5000 encode 5000 minus the value.
func signedLevel(v int) int {
	if v > 5000 {
		return 5000 - v
	}
	return v
}
