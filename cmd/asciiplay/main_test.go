package main

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmpim/asciiplay"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigSampleAndValidate(t *testing.T) {
	out, err := run(t, "config", "sample")
	require.NoError(t, err)
	assert.Contains(t, out, "[player]")

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err = run(t, "config", "sample", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "config", "sample", "--path", path)
	assert.ErrorContains(t, err, "already exists")
	_, err = run(t, "config", "sample", "--path", path, "--overwrite")
	require.NoError(t, err)

	out, err = run(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[player]\nspeed = 3\n"), 0o644))

	_, err := run(t, "--config", path, "config", "validate")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_1.txt"), []byte("ab\ncd\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_2.txt"), []byte("ef\ngh\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_2.colors"), []byte{1, 2}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "details.md"), []byte("FPS: 4\n"), 0o644))

	out, err := run(t, "--config", filepath.Join(dir, "missing.toml"), "info", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "frame_1.txt")
	assert.Contains(t, out, ".colors (invalid)")
	assert.Contains(t, out, "Frames:   2 (0 with color)")
	assert.Contains(t, out, "FPS:      4 (details.md)")
	assert.Contains(t, out, "Duration: 500ms")
	assert.Contains(t, out, "Audio:    none")
}

func TestInfoMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "--config", filepath.Join(dir, "missing.toml"), "info", filepath.Join(dir, "nope"))
	assert.ErrorContains(t, err, "directory does not exist")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_1.txt"), []byte("##\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_2.txt"), []byte("ab\n"), 0o644))

	cells := &asciiplay.ColoredCells{
		Width:  2,
		Height: 1,
		Glyphs: []byte("ab"),
		RGB:    []byte{255, 0, 0, 0, 255, 0},
	}
	colors := new(bytes.Buffer)
	require.NoError(t, cells.WriteColors(colors))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_2.colors"), colors.Bytes(), 0o644))

	out := filepath.Join(t.TempDir(), "png")
	stdout, err := run(t, "--config", filepath.Join(dir, "missing.toml"),
		"export", dir, "--out", out, "--font-size", "10", "--scale", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exported 2 frames to "+out)

	m := asciiplay.NewMetrics(10)
	wantW := 2 * int(math.Ceil(2*m.CharWidth()))
	wantH := 2 * int(math.Ceil(m.LineHeight()))

	for _, name := range []string{"frame_1.png", "frame_2.png"} {
		f, err := os.Open(filepath.Join(out, name))
		require.NoError(t, err, name)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err, name)
		assert.Equal(t, wantW, img.Bounds().Dx(), name)
		assert.Equal(t, wantH, img.Bounds().Dy(), name)
	}
}

func TestExportRequiresOut(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_1.txt"), []byte("##\n"), 0o644))

	_, err := run(t, "--config", filepath.Join(dir, "missing.toml"), "export", dir)
	assert.ErrorContains(t, err, "--out")

	_, err = run(t, "--config", filepath.Join(dir, "missing.toml"),
		"export", dir, "--out", t.TempDir(), "--scale", "0")
	assert.ErrorContains(t, err, "--scale")
}
