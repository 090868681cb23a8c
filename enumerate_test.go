package asciiplay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644))
	}
}

func frameNames(frames []FrameFile) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Name
	}
	return names
}

func TestFrameIndex(t *testing.T) {
	cases := []struct {
		stem     string
		fallback uint32
		want     uint32
	}{
		{"frame_0042", 7, 42},
		{"frame_1", 7, 1},
		{"frame_a10", 7, 10},
		{"shot2_take10", 7, 210},
		{"intro", 7, 7},
		{"frame_", 3, 3},
		{"99999999999", 4, 4},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, FrameIndex(c.stem, c.fallback), c.stem)
	}
}

func TestOrderFramesNumeric(t *testing.T) {
	frames := OrderFrames("/d", []string{"frame_10.txt", "frame_2.txt", "frame_1.txt"})
	assert.Equal(t, []string{"frame_1.txt", "frame_2.txt", "frame_10.txt"}, frameNames(frames))
	assert.Equal(t, []uint32{1, 2, 10}, []uint32{frames[0].Index, frames[1].Index, frames[2].Index})
}

func TestOrderFramesDedupAndCanonicalPath(t *testing.T) {
	frames := OrderFrames("/d", []string{
		"frame_2.cframe", "frame_1.txt", "frame_2.txt", "frame_1.colors", "notes.md",
	})

	require.Len(t, frames, 2)
	assert.Equal(t, FrameFile{Path: filepath.Join("/d", "frame_1.txt"), Name: "frame_1.txt", Index: 1}, frames[0])
	assert.Equal(t, FrameFile{Path: filepath.Join("/d", "frame_2.txt"), Name: "frame_2.txt", Index: 2}, frames[1])
}

func TestOrderFramesTiesByName(t *testing.T) {
	frames := OrderFrames("/d", []string{"b1.txt", "a1.txt", "c.txt"})
	// c has no digits and falls back to its running position, 2.
	assert.Equal(t, []string{"a1.txt", "b1.txt", "c.txt"}, frameNames(frames))
}

func TestEnumerateDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "frame_10.txt", "frame_2.cframe", "frame_1.txt", "frame_1.colors", "audio.mp3", "details.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame_0.txt"), 0o755))

	frames, err := EnumerateFrames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"frame_1.txt", "frame_2.txt", "frame_10.txt"}, frameNames(frames))
	assert.Equal(t, filepath.Join(dir, "frame_2.txt"), frames[1].Path)
}

func TestEnumerateEmptyDirectory(t *testing.T) {
	frames, err := EnumerateFrames(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestEnumerateSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "scene.cframe", "scene.colors")

	frames, err := EnumerateFrames(filepath.Join(dir, "scene.cframe"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, filepath.Join(dir, "scene.txt"), frames[0].Path)
	assert.Equal(t, "scene.cframe", frames[0].Name)
	assert.Equal(t, uint32(0), frames[0].Index)

	_, err = EnumerateFrames(filepath.Join(dir, "scene.colors"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEnumerateMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone")
	_, err := EnumerateFrames(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), path)
}
