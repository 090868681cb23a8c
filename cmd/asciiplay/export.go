package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/gift"
	"github.com/spf13/cobra"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/stream"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var fontSize float64
	var scale float64

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Paint every frame to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(outDir) == "" {
				return fmt.Errorf("--out must be specified")
			}
			if scale <= 0 {
				return fmt.Errorf("--scale must be positive, got %v", scale)
			}
			if fontSize > 0 {
				cfg.Player.FontSize = fontSize
			}

			log, closer, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			opts := sessionOptions(cfg, log)
			opts.Color = true
			opts.Paint = true

			session, err := stream.NewSession(opts)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Open(cmd.Context(), args[0]); err != nil {
				return err
			}

			select {
			case <-session.Loaded():
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory %q: %w", outDir, err)
			}

			painter, err := asciiplay.NewPainter(session.Cache().Metrics())
			if err != nil {
				return err
			}

			files := session.Files()
			for i, file := range files {
				img, err := paintFrame(session, painter, i)
				if err != nil {
					return err
				}
				if img == nil {
					continue
				}
				img = scaleImage(img, scale)

				target := filepath.Join(outDir, asciiplay.Stem(file.Name)+".png")
				if err := writePNG(target, img); err != nil {
					return err
				}
				log.WithField("file", target).Debug("exported frame")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d frames to %s\n", len(files), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory")
	cmd.Flags().Float64Var(&fontSize, "font-size", 0, "Font size in pixels, overriding player.font_size")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Scale factor applied to each painted frame")
	return cmd
}

// paintFrame returns the frame at index on an opaque black background.
// Frames without color are painted in white.
func paintFrame(session *stream.Session, painter *asciiplay.Painter, index int) (image.Image, error) {
	view, ok := session.ViewAt(index)
	if !ok {
		return nil, nil
	}

	surface := view.Surface
	if surface == nil || surface.Image == nil {
		rows, cols := asciiplay.GridSize(view.Text)
		if rows == 0 || cols == 0 {
			return nil, nil
		}
		rgb := make([]byte, rows*cols*3)
		for i := range rgb {
			rgb[i] = 0xff
		}
		cells, err := asciiplay.ColorsToCells(view.Text, cols, rows, rgb)
		if err != nil {
			return nil, err
		}
		surface = painter.Surface(asciiplay.DefaultRasterizer, cells)
	}

	return asciiplay.Flatten(surface.Image, image.Black), nil
}

func scaleImage(img image.Image, scale float64) image.Image {
	if scale == 1 {
		return img
	}

	width := int(float64(img.Bounds().Dx()) * scale)
	if width < 1 {
		width = 1
	}

	resampling := gift.LanczosResampling
	if scale == float64(int(scale)) {
		resampling = gift.NearestNeighborResampling
	}

	filter := gift.Resize(width, 0, resampling)
	dst := image.NewRGBA(filter.Bounds(img.Bounds()))
	filter.Draw(dst, img, &gift.Options{Parallelization: true})
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	return f.Close()
}
