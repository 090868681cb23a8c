package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tmpim/asciiplay"
	"github.com/tmpim/asciiplay/host"
)

type frameInfo struct {
	file   asciiplay.FrameFile
	source string
	color  string
	// colored is set when the companion decodes against the text.
	colored bool
	rows    int
	cols    int
	size    int64
	err     error
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Describe the frames of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			log, closer, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			access := host.NewLocal(log)
			path := args[0]

			files, err := access.EnumerateFrames(cmd.Context(), path)
			if err != nil {
				return err
			}

			details, err := access.ReadProjectDetails(cmd.Context(), path)
			if err != nil {
				return err
			}

			var rows [][]string
			var total int64
			colored := 0

			for _, file := range files {
				fi := describeFrame(cmd, access, file)
				total += fi.size
				if fi.colored {
					colored++
				}

				dims := "-"
				if fi.err == nil {
					dims = fmt.Sprintf("%dx%d", fi.cols, fi.rows)
				}
				rows = append(rows, []string{
					strconv.FormatUint(uint64(fi.file.Index), 10),
					fi.file.Name,
					fi.source,
					fi.color,
					dims,
					humanize.Bytes(uint64(fi.size)),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Index", "Name", "Text", "Color", "Size", "Bytes"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))

			fps := details.FPS
			fpsSource := "details.md"
			if fps <= 0 {
				fps = cfg.Player.FPS
				fpsSource = "default"
			}
			duration := time.Duration(float64(len(files)) / float64(fps) * float64(time.Second))

			fmt.Fprintf(out, "Frames:   %d (%d with color)\n", len(files), colored)
			fmt.Fprintf(out, "FPS:      %d (%s)\n", fps, fpsSource)
			fmt.Fprintf(out, "Duration: %s\n", duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Total:    %s\n", humanize.Bytes(uint64(total)))
			if details.HasAudio() {
				if st, err := os.Stat(details.AudioPath); err == nil {
					fmt.Fprintf(out, "Audio:    %s (%s)\n", details.AudioPath, humanize.Bytes(uint64(st.Size())))
				}
			} else {
				fmt.Fprintln(out, "Audio:    none")
			}

			return nil
		},
	}
}

func describeFrame(cmd *cobra.Command, access *host.Local, file asciiplay.FrameFile) frameInfo {
	fi := frameInfo{file: file, source: "-", color: "-"}

	content, source, err := access.ResolveText(cmd.Context(), file.Path)
	if err != nil {
		fi.err = err
		fi.source = "missing"
		return fi
	}
	switch source {
	case host.SourceText:
		fi.source = asciiplay.ExtText
		fi.size += fileSize(file.Path)
	case host.SourceCFrame:
		fi.source = asciiplay.ExtCFrame
	}
	fi.rows, fi.cols = asciiplay.GridSize(content)

	bin, err := access.ReadOptionalBinary(cmd.Context(), file.Path)
	if err != nil || bin == nil {
		return fi
	}
	fi.size += int64(len(bin.Data))

	if _, err := bin.Decode(content); err != nil {
		fi.color = bin.Kind.Ext() + " (invalid)"
		return fi
	}
	fi.color = bin.Kind.Ext()
	fi.colored = true
	return fi
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
