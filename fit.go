package asciiplay

import "math"

// FitOptions bounds the automatic font size.
type FitOptions struct {
	CharWidthRatio  float64
	LineHeightRatio float64
	MinFontSize     float64
	MaxFontSize     float64
	// Padding is subtracted from both container dimensions.
	Padding float64
}

// DefaultFitOptions mirrors the default metrics.
var DefaultFitOptions = FitOptions{
	CharWidthRatio:  DefaultCharWidthRatio,
	LineHeightRatio: DefaultLineHeightRatio,
	MinFontSize:     1,
	MaxFontSize:     50,
	Padding:         20,
}

// FitFontSize returns the largest font size at which content fits a
// container of the given size, clamped to the option bounds. ok is false
// when the content is empty or no space is available, in which case the
// caller keeps its current size.
func FitFontSize(content string, width, height float64, opts FitOptions) (size float64, ok bool) {
	rows, cols := GridSize(content)
	if rows == 0 || cols == 0 {
		return 0, false
	}

	availW := width - opts.Padding
	availH := height - opts.Padding
	if availW <= 0 || availH <= 0 {
		return 0, false
	}

	fromWidth := availW / (float64(cols) * opts.CharWidthRatio)
	fromHeight := availH / (float64(rows) * opts.LineHeightRatio)

	size = math.Min(fromWidth, fromHeight)
	size = math.Max(size, opts.MinFontSize)
	size = math.Min(size, opts.MaxFontSize)
	return size, true
}
