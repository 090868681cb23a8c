package asciiplay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLines(t *testing.T) {
	assert.Nil(t, TextLines(""))
	assert.Nil(t, TextLines("\n"))
	assert.Equal(t, []string{"ab", "c"}, TextLines("ab\r\nc\r\n"))
	assert.Equal(t, []string{"ab", "", "c"}, TextLines("ab\n\nc"))
}

func TestGridSize(t *testing.T) {
	rows, cols := GridSize("ab\nlonger\nx\n")
	assert.Equal(t, 3, rows)
	assert.Equal(t, 6, cols)

	rows, cols = GridSize("")
	assert.Zero(t, rows)
	assert.Zero(t, cols)
}

func TestLoadingPhaseText(t *testing.T) {
	text, err := PhaseLoadingColors.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "loading-colors", string(text))
	assert.Equal(t, "idle", PhaseIdle.String())
}

func TestGenerationTokens(t *testing.T) {
	var gen Generation
	first := gen.Next()
	assert.True(t, first.Current())

	second := gen.Next()
	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.Equal(t, second, gen.Current())
	assert.Greater(t, second.Value(), first.Value())
}

func TestSequenceAttachCells(t *testing.T) {
	var gen Generation
	token := gen.Next()
	seq := NewSequence(token, []Frame{{Content: "AB\n#@\n"}, {Content: "x\n"}})

	assert.True(t, seq.AttachCells(token, 0, testCells()))
	assert.False(t, seq.AttachCells(token, 0, testCells()), "cells are attached at most once")
	assert.False(t, seq.AttachCells(token, 5, testCells()))
	assert.False(t, seq.AttachCells(token, 1, nil))

	frame, ok := seq.Frame(0)
	require.True(t, ok)
	assert.Equal(t, testCells(), frame.Cells)

	gen.Next()
	assert.False(t, seq.AttachCells(token, 1, testCells()), "stale generation must not mutate")
	frame, _ = seq.Frame(1)
	assert.Nil(t, frame.Cells)
}

func TestSequenceForeignToken(t *testing.T) {
	var a, b Generation
	seq := NewSequence(a.Next(), []Frame{{Content: "x\n"}})
	assert.False(t, seq.AttachCells(b.Next(), 0, testCells()))
}

func TestSequenceNil(t *testing.T) {
	var seq *Sequence
	assert.Zero(t, seq.Len())
	_, ok := seq.Frame(0)
	assert.False(t, ok)
}

func TestSequenceConcurrentReads(t *testing.T) {
	var gen Generation
	token := gen.Next()
	frames := make([]Frame, 64)
	seq := NewSequence(token, frames)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < len(frames); i++ {
			seq.AttachCells(token, i, testCells())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < len(frames); i++ {
			seq.Frame(i)
		}
	}()
	wg.Wait()

	for i := 0; i < len(frames); i++ {
		f, _ := seq.Frame(i)
		assert.NotNil(t, f.Cells)
	}
}
