package asciiplay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitFontSize(t *testing.T) {
	content := strings.Repeat(strings.Repeat("x", 100)+"\n", 20)

	// width: (620-20)/(100*0.6) = 10, height: (1000-20)/(20*1.11) ≈ 44
	size, ok := FitFontSize(content, 620, 1000, DefaultFitOptions)
	assert.True(t, ok)
	assert.InDelta(t, 10.0, size, 1e-9)
}

func TestFitFontSizeClamps(t *testing.T) {
	size, ok := FitFontSize("x\n", 10000, 10000, DefaultFitOptions)
	assert.True(t, ok)
	assert.Equal(t, 50.0, size)

	content := strings.Repeat(strings.Repeat("x", 1000)+"\n", 10)
	size, ok = FitFontSize(content, 100, 100, DefaultFitOptions)
	assert.True(t, ok)
	assert.Equal(t, 1.0, size)
}

func TestFitFontSizeNoSpace(t *testing.T) {
	_, ok := FitFontSize("x\n", 20, 500, DefaultFitOptions)
	assert.False(t, ok)

	_, ok = FitFontSize("", 500, 500, DefaultFitOptions)
	assert.False(t, ok)
}
