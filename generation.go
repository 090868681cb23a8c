package asciiplay

import "sync/atomic"

// Generation mints monotonically increasing tokens. Background work captures
// a token and checks it before every side effect; a reset event (new
// directory, new font size) mints a new token and silently strands the old
// work.
type Generation struct {
	n atomic.Uint64
}

// Next invalidates all outstanding tokens and returns a fresh one.
func (g *Generation) Next() Token {
	return Token{gen: g, value: g.n.Add(1)}
}

// Current returns a token for the current generation without advancing it.
func (g *Generation) Current() Token {
	return Token{gen: g, value: g.n.Load()}
}

// Token is a captured generation value.
type Token struct {
	gen   *Generation
	value uint64
}

// Current reports whether no newer token has been minted since t.
func (t Token) Current() bool {
	return t.gen != nil && t.gen.n.Load() == t.value
}

// Value returns the numeric generation.
func (t Token) Value() uint64 {
	return t.value
}
