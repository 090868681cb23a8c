package asciiplay

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FramePrefix is the naming convention whose trailing digits are the frame
// index, e.g. frame_0042.
const FramePrefix = "frame_"

// IsFrameExt reports whether ext names one of the two frame file kinds a user
// may point at directly. Colors files only ever accompany a frame.
func IsFrameExt(ext string) bool {
	return ext == ExtText || ext == ExtCFrame
}

// Stem returns a file name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// TextPath rewrites path to its canonical text-form extension.
func TextPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ExtText
}

// CompanionPath returns the path of the file sharing path's stem with the
// extension of kind.
func CompanionPath(path string, kind BinaryKind) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + kind.Ext()
}

// FrameIndex derives the ordering index of a stem. Stems following the
// frame_ convention use their trailing digits; otherwise every decimal digit
// in the stem is concatenated. fallback is used when no number can be
// parsed.
func FrameIndex(stem string, fallback uint32) uint32 {
	if rest := strings.TrimPrefix(stem, FramePrefix); rest != stem {
		end := len(rest)
		start := end
		for start > 0 && rest[start-1] >= '0' && rest[start-1] <= '9' {
			start--
		}
		if start < end {
			if n, err := strconv.ParseUint(rest[start:end], 10, 32); err == nil {
				return uint32(n)
			}
		}
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, stem)
	if digits == "" {
		return fallback
	}

	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(n)
}

// OrderFrames builds the ordered frame list of a directory from its entry
// names, in listing order. Names sharing a stem collapse into one frame;
// unrecognized extensions are ignored.
func OrderFrames(dir string, names []string) []FrameFile {
	seen := make(map[string]bool)
	var frames []FrameFile

	for _, name := range names {
		if !IsFrameExt(filepath.Ext(name)) {
			continue
		}

		stem := Stem(name)
		if seen[stem] {
			continue
		}
		seen[stem] = true

		textName := stem + ExtText
		frames = append(frames, FrameFile{
			Path:  filepath.Join(dir, textName),
			Name:  textName,
			Index: FrameIndex(stem, uint32(len(frames))),
		})
	}

	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].Index != frames[j].Index {
			return frames[i].Index < frames[j].Index
		}
		return frames[i].Name < frames[j].Name
	})

	return frames
}

// EnumerateFrames lists the frames at path, which may be a single frame file
// or a directory. Directories are scanned non-recursively.
func EnumerateFrames(path string) ([]FrameFile, error) {
	const op = "EnumerateFrames"

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NotFoundError(op, path, "directory does not exist")
	} else if err != nil {
		return nil, IOError(op, path, err)
	}

	if !info.IsDir() {
		if !IsFrameExt(filepath.Ext(path)) {
			return nil, newError(InvalidInput, op, path, nil,
				"dropped file is not a %s or %s file", ExtText, ExtCFrame)
		}
		return []FrameFile{{
			Path:  TextPath(path),
			Name:  filepath.Base(path),
			Index: 0,
		}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, newError(IoFailure, op, path, err, "failed to read directory")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if isRegular(path, entry) {
			names = append(names, entry.Name())
		}
	}

	return OrderFrames(path, names), nil
}

func isRegular(dir string, entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}
