// Package asciiplay decodes, rasterizes and plays back directories of
// per-frame ASCII art, optionally colored by binary companion files.
package asciiplay

import (
	"strings"
	"sync"
)

// FrameFile identifies one frame before its content is loaded.
type FrameFile struct {
	// Path is the canonical text-form path (always ending in .txt).
	Path  string `json:"path"`
	Name  string `json:"name"`
	Index uint32 `json:"index"`
}

// ColoredCells is the decoded glyph and color payload of a frame.
type ColoredCells struct {
	Width  int
	Height int
	// Glyphs holds Width*Height bytes, row-major.
	Glyphs []byte
	// RGB holds Width*Height*3 bytes, row-major.
	RGB []byte
}

// Valid reports whether the array lengths match the declared dimensions.
func (c *ColoredCells) Valid() bool {
	if c == nil || c.Width < 0 || c.Height < 0 {
		return false
	}
	n := c.Width * c.Height
	return len(c.Glyphs) == n && len(c.RGB) == n*3
}

// At returns the glyph and color of the cell at (col, row).
func (c *ColoredCells) At(col, row int) (glyph, r, g, b byte) {
	i := row*c.Width + col
	return c.Glyphs[i], c.RGB[i*3], c.RGB[i*3+1], c.RGB[i*3+2]
}

// Frame is one unit of animation.
type Frame struct {
	Content string
	// Cells is nil until color data has been attached.
	Cells *ColoredCells
}

// Lines splits the frame's text grid into rows.
func (f *Frame) Lines() []string {
	return TextLines(f.Content)
}

// TextLines splits a text grid into rows, tolerating CRLF and a trailing
// line break.
func TextLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// GridSize returns the row and column count of a text grid. Columns is the
// longest row in bytes.
func GridSize(content string) (rows, cols int) {
	lines := TextLines(content)
	for _, line := range lines {
		if len(line) > cols {
			cols = len(line)
		}
	}
	return len(lines), cols
}

// LoadingPhase is the per-session loading state.
type LoadingPhase int

// Loading phases, in the only order they may advance.
const (
	PhaseIdle LoadingPhase = iota
	PhaseLoadingText
	PhaseLoadingColors
	PhaseComplete
)

func (p LoadingPhase) String() string {
	switch p {
	case PhaseLoadingText:
		return "loading-text"
	case PhaseLoadingColors:
		return "loading-colors"
	case PhaseComplete:
		return "complete"
	default:
		return "idle"
	}
}

// MarshalText encodes the phase by name.
func (p LoadingPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Sequence is the in-memory frame sequence of one load. Frames are readable
// by index as soon as the sequence exists; color payloads are attached at
// most once per frame and only while the owning generation is current.
type Sequence struct {
	mutex  sync.RWMutex
	frames []Frame
	token  Token
}

// NewSequence publishes a fully text-loaded frame list owned by token.
func NewSequence(token Token, frames []Frame) *Sequence {
	return &Sequence{
		frames: frames,
		token:  token,
	}
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.frames)
}

// Frame returns a copy of the frame at index.
func (s *Sequence) Frame(index int) (Frame, bool) {
	if s == nil {
		return Frame{}, false
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if index < 0 || index >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[index], true
}

// Token returns the generation token the sequence belongs to.
func (s *Sequence) Token() Token {
	return s.token
}

// AttachCells sets the color payload of the frame at index. It returns false
// without touching the frame when token is stale, the index is out of range
// or the frame already has a payload.
func (s *Sequence) AttachCells(token Token, index int, cells *ColoredCells) bool {
	if s == nil || cells == nil {
		return false
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !token.Current() || token != s.token {
		return false
	}
	if index < 0 || index >= len(s.frames) || s.frames[index].Cells != nil {
		return false
	}
	s.frames[index].Cells = cells
	return true
}
