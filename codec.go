package asciiplay

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// File extensions recognized by the pipeline.
const (
	ExtText   = ".txt"
	ExtCFrame = ".cframe"
	ExtColors = ".colors"
)

// HeaderSize is the size of the width/height header shared by both
// container formats.
const HeaderSize = 8

const (
	cframeRecordSize = 4
	colorsRecordSize = 3
)

// BinaryKind identifies one of the two binary container formats.
type BinaryKind int

// Binary container formats.
const (
	// KindCFrame records carry [glyph, r, g, b] per cell.
	KindCFrame BinaryKind = iota + 1
	// KindColors records carry [r, g, b] per cell; glyphs come from the
	// text file.
	KindColors
)

// Ext returns the file extension of the format.
func (k BinaryKind) Ext() string {
	switch k {
	case KindCFrame:
		return ExtCFrame
	case KindColors:
		return ExtColors
	default:
		return ""
	}
}

func (k BinaryKind) String() string {
	switch k {
	case KindCFrame:
		return "cframe"
	case KindColors:
		return "colors"
	default:
		return "none"
	}
}

// Binary is a raw binary companion file of a frame.
type Binary struct {
	Kind BinaryKind
	Data []byte
}

// Decode turns the binary into colored cells. content is the frame's text
// grid, which supplies the glyphs of a Colors payload and fixes the grid
// dimensions the payload must match.
func (b *Binary) Decode(content string) (*ColoredCells, error) {
	var cells *ColoredCells
	var err error

	switch b.Kind {
	case KindCFrame:
		cells, err = DecodeCFrame(b.Data)
	case KindColors:
		var width, height int
		var rgb []byte
		width, height, rgb, err = DecodeColors(b.Data)
		if err == nil {
			cells, err = ColorsToCells(content, width, height, rgb)
		}
	default:
		return nil, newError(InvalidInput, "Decode", "", nil, "unknown binary kind %d", b.Kind)
	}
	if err != nil {
		return nil, err
	}

	rows, cols := GridSize(content)
	if rows != cells.Height || cols > cells.Width {
		return nil, newError(FormatError, "Decode", "", nil,
			"%s grid %dx%d does not match text grid %dx%d",
			b.Kind, cells.Width, cells.Height, cols, rows)
	}

	return cells, nil
}

// readHeader validates the header and body length of a container with
// recordSize bytes per cell.
func readHeader(op string, data []byte, recordSize int) (width, height int, err error) {
	if len(data) < HeaderSize {
		return 0, 0, newError(FormatError, op, "", nil,
			"missing header: expected %d bytes, got %d", HeaderSize, len(data))
	}

	w := uint64(binary.LittleEndian.Uint32(data[0:4]))
	h := uint64(binary.LittleEndian.Uint32(data[4:8]))
	cells := w * h

	if cells > (math.MaxUint64-HeaderSize)/uint64(recordSize) {
		return 0, 0, newError(FormatError, op, "", nil,
			"declared size %dx%d overflows, got %d bytes", w, h, len(data))
	}

	expected := HeaderSize + cells*uint64(recordSize)
	if uint64(len(data)) < expected {
		return 0, 0, newError(FormatError, op, "", nil,
			"size mismatch: expected %d bytes, got %d", expected, len(data))
	}

	return int(w), int(h), nil
}

// DecodeCFrame splits a CFrame buffer into parallel glyph and RGB arrays.
func DecodeCFrame(data []byte) (*ColoredCells, error) {
	width, height, err := readHeader("DecodeCFrame", data, cframeRecordSize)
	if err != nil {
		return nil, err
	}

	n := width * height
	cells := &ColoredCells{
		Width:  width,
		Height: height,
		Glyphs: make([]byte, n),
		RGB:    make([]byte, n*3),
	}

	body := data[HeaderSize:]
	for i := 0; i < n; i++ {
		rec := body[i*cframeRecordSize : i*cframeRecordSize+cframeRecordSize]
		cells.Glyphs[i] = rec[0]
		copy(cells.RGB[i*3:i*3+3], rec[1:4])
	}

	return cells, nil
}

// DecodeCFrameText reconstructs the text grid of a CFrame buffer: one
// character per cell, a line break after every row.
func DecodeCFrameText(data []byte) (string, error) {
	width, height, err := readHeader("DecodeCFrameText", data, cframeRecordSize)
	if err != nil {
		return "", err
	}

	body := data[HeaderSize:]
	text := make([]byte, 0, width*height+height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			text = append(text, body[(row*width+col)*cframeRecordSize])
		}
		text = append(text, '\n')
	}

	return string(text), nil
}

// DecodeColors returns the dimensions and RGB body of a Colors buffer.
func DecodeColors(data []byte) (width, height int, rgb []byte, err error) {
	width, height, err = readHeader("DecodeColors", data, colorsRecordSize)
	if err != nil {
		return 0, 0, nil, err
	}

	n := width * height * colorsRecordSize
	rgb = make([]byte, n)
	copy(rgb, data[HeaderSize:HeaderSize+n])
	return width, height, rgb, nil
}

// ColorsToCells pairs a Colors payload with the glyphs of its text grid.
// Rows shorter than width are padded with spaces; the row count must match.
func ColorsToCells(content string, width, height int, rgb []byte) (*ColoredCells, error) {
	if len(rgb) != width*height*colorsRecordSize {
		return nil, newError(FormatError, "ColorsToCells", "", nil,
			"size mismatch: expected %d bytes, got %d", width*height*colorsRecordSize, len(rgb))
	}

	lines := TextLines(content)
	if len(lines) != height {
		return nil, newError(FormatError, "ColorsToCells", "", nil,
			"colors height %d does not match %d text rows", height, len(lines))
	}

	glyphs := make([]byte, width*height)
	for row, line := range lines {
		for col := 0; col < width; col++ {
			if col < len(line) {
				glyphs[row*width+col] = line[col]
			} else {
				glyphs[row*width+col] = ' '
			}
		}
	}

	return &ColoredCells{
		Width:  width,
		Height: height,
		Glyphs: glyphs,
		RGB:    rgb,
	}, nil
}

func writeHeader(wr *bufio.Writer, width, height int) {
	binary.Write(wr, binary.LittleEndian, uint32(width))
	binary.Write(wr, binary.LittleEndian, uint32(height))
}

// WriteCFrame writes the cells in the CFrame container format.
func (c *ColoredCells) WriteCFrame(w io.Writer) error {
	if !c.Valid() {
		return fmt.Errorf("asciiplay: WriteCFrame: invalid cells %dx%d", c.Width, c.Height)
	}

	wr := bufio.NewWriter(w)
	writeHeader(wr, c.Width, c.Height)

	for i, glyph := range c.Glyphs {
		wr.Write([]byte{glyph, c.RGB[i*3], c.RGB[i*3+1], c.RGB[i*3+2]})
	}

	return wr.Flush()
}

// WriteColors writes the cells' colors in the Colors container format.
func (c *ColoredCells) WriteColors(w io.Writer) error {
	if !c.Valid() {
		return fmt.Errorf("asciiplay: WriteColors: invalid cells %dx%d", c.Width, c.Height)
	}

	wr := bufio.NewWriter(w)
	writeHeader(wr, c.Width, c.Height)
	wr.Write(c.RGB)

	return wr.Flush()
}
