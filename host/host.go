// Package host provides the file access a player session depends on.
package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay"
)

// Names of the sidecar files read from a frame directory.
const (
	DetailsFile = "details.md"
	AudioFile   = "audio.mp3"
	FPSPrefix   = "FPS:"
)

// ProjectDetails is the metadata of a frame directory.
type ProjectDetails struct {
	// FPS is the frame rate override, 0 when unset.
	FPS       int    `json:"fps,omitempty"`
	AudioPath string `json:"audioPath,omitempty"`
}

// HasAudio reports whether an audio track accompanies the frames.
func (d ProjectDetails) HasAudio() bool {
	return d.AudioPath != ""
}

// Access is the data access capability consumed by the loader.
type Access interface {
	EnumerateFrames(ctx context.Context, path string) ([]asciiplay.FrameFile, error)
	ReadFrameText(ctx context.Context, path string) (string, error)
	// ReadOptionalBinary returns the binary companion of a text frame, or
	// nil when the frame has no color data.
	ReadOptionalBinary(ctx context.Context, textPath string) (*asciiplay.Binary, error)
	ReadProjectDetails(ctx context.Context, path string) (ProjectDetails, error)
	ReadAudioAsDataURI(ctx context.Context, path string) (string, error)
}

// TextSource names where a frame's text came from.
type TextSource int

// Text sources, in resolution order.
const (
	SourceText TextSource = iota + 1
	SourceCFrame
)

// BinaryOrder is the order in which binary companions are looked up.
var BinaryOrder = []asciiplay.BinaryKind{asciiplay.KindCFrame, asciiplay.KindColors}

// Local serves frames from the local filesystem.
type Local struct {
	Log logrus.FieldLogger
}

// NewLocal returns a filesystem-backed Access.
func NewLocal(log logrus.FieldLogger) *Local {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Local{Log: log.WithField("component", "host")}
}

var _ Access = (*Local)(nil)

// EnumerateFrames lists the frames at path.
func (l *Local) EnumerateFrames(ctx context.Context, path string) ([]asciiplay.FrameFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return asciiplay.EnumerateFrames(path)
}

// ReadFrameText reads the text of a frame.
func (l *Local) ReadFrameText(ctx context.Context, path string) (string, error) {
	text, _, err := l.ResolveText(ctx, path)
	return text, err
}

// ResolveText reads path, falling back to the text embedded in the CFrame
// sharing its stem.
func (l *Local) ResolveText(ctx context.Context, path string) (string, TextSource, error) {
	const op = "ReadFrameText"

	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), SourceText, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", 0, asciiplay.IOError(op, path, err)
	}

	cframePath := asciiplay.CompanionPath(path, asciiplay.KindCFrame)
	data, err = os.ReadFile(cframePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", 0, asciiplay.NotFoundError(op, path, "neither .txt nor .cframe file exists")
	} else if err != nil {
		return "", 0, asciiplay.IOError(op, cframePath, err)
	}

	text, err := asciiplay.DecodeCFrameText(data)
	if err != nil {
		return "", 0, err
	}

	return text, SourceCFrame, nil
}

// ReadOptionalBinary reads the first binary companion of textPath found in
// BinaryOrder.
func (l *Local) ReadOptionalBinary(ctx context.Context, textPath string) (*asciiplay.Binary, error) {
	for _, kind := range BinaryOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := asciiplay.CompanionPath(textPath, kind)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, asciiplay.IOError("ReadOptionalBinary", path, err)
		}

		return &asciiplay.Binary{Kind: kind, Data: data}, nil
	}

	return nil, nil
}

// ReadProjectDetails reads details.md and looks for audio.mp3 next to the
// frames. A missing details file yields defaults.
func (l *Local) ReadProjectDetails(ctx context.Context, path string) (ProjectDetails, error) {
	if err := ctx.Err(); err != nil {
		return ProjectDetails{}, err
	}

	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}

	var details ProjectDetails

	audioPath := filepath.Join(dir, AudioFile)
	if info, err := os.Stat(audioPath); err == nil && !info.IsDir() {
		details.AudioPath = audioPath
	}

	data, err := os.ReadFile(filepath.Join(dir, DetailsFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.Log.WithError(err).Debug("ignoring unreadable details file")
		}
		return details, nil
	}

	details.FPS = ParseDetails(data)
	return details, nil
}

// ParseDetails returns the frame rate declared in a details file, 0 when
// none. Unknown lines are ignored. The last FPS line wins, and a malformed
// value clears the rate.
func ParseDetails(data []byte) int {
	fps := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		value, ok := strings.CutPrefix(sc.Text(), FPSPrefix)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			fps = 0
			continue
		}
		fps = int(n)
	}
	return fps
}

// ReadAudioAsDataURI returns the audio file encoded as a data URI.
func (l *Local) ReadAudioAsDataURI(ctx context.Context, path string) (string, error) {
	const op = "ReadAudioAsDataURI"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", asciiplay.NotFoundError(op, path, "audio file does not exist")
	} else if err != nil {
		return "", asciiplay.IOError(op, path, err)
	}

	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
