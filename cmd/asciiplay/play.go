package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tmpim/asciiplay/config"
	"github.com/tmpim/asciiplay/host"
	"github.com/tmpim/asciiplay/playback"
	"github.com/tmpim/asciiplay/stream"
	"github.com/tmpim/asciiplay/tui"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var color bool
	var fps int
	var plain bool

	cmd := &cobra.Command{
		Use:   "play <path>",
		Short: "Play a frame directory in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("color") {
				cfg.Player.Color = color
			}
			if fps > 0 {
				cfg.Player.FPS = fps
			}
			watch = watch || cfg.Watch.Enabled

			runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if plain || !isTerminal(os.Stdout) {
				return playPlain(runCtx, ctx, cfg, args[0], cmd.OutOrStdout())
			}
			return playTerminal(runCtx, ctx, cfg, args[0], watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload when the frame directory changes")
	cmd.Flags().BoolVar(&color, "color", false, "Start in colored mode")
	cmd.Flags().IntVar(&fps, "fps", 0, "Frame rate when the directory does not declare one")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print frames as plain text instead of the interactive player")
	return cmd
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func playTerminal(ctx context.Context, cmdCtx *commandContext, cfg *config.Config,
	path string, watch bool) error {
	// Log lines would tear the terminal UI; only the log file receives them.
	log, closer, err := cmdCtx.logger(io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()

	bridge := new(tui.Bridge)
	opts := sessionOptions(cfg, log)
	opts.OnUpdate = bridge.OnUpdate

	session, err := stream.NewSession(opts)
	if err != nil {
		return err
	}
	defer session.Close()

	program := tea.NewProgram(tui.New(session), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	open := func() {
		if err := session.Open(ctx, path); err != nil {
			return
		}
		session.Player().Start()
	}
	go open()

	if watch {
		if err := startWatcher(ctx, path, cfg, log, open); err != nil {
			return err
		}
	}

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func playPlain(ctx context.Context, cmdCtx *commandContext, cfg *config.Config,
	path string, out io.Writer) error {
	log, closer, err := cmdCtx.logger(nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	done := make(chan struct{})
	var finish sync.Once
	var played atomic.Bool
	var session *stream.Session

	opts := sessionOptions(cfg, log)
	opts.Loop = false
	opts.OnUpdate = func(u stream.Update) {
		if u.Kind != stream.UpdateFrame {
			return
		}
		if u.Event.State == playback.Playing {
			played.Store(true)
			if frame, ok := session.Frame(u.Event.Index); ok {
				fmt.Fprint(out, "\f", frame.Content)
			}
			return
		}
		if played.Load() {
			finish.Do(func() { close(done) })
		}
	}

	session, err = stream.NewSession(opts)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Open(ctx, path); err != nil {
		return err
	}

	session.Player().Start()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func startWatcher(ctx context.Context, path string, cfg *config.Config,
	log logrus.FieldLogger, onChange func()) error {
	w, err := host.NewWatcher(path, cfg.Watch.Patterns, cfg.WatchDebounce(), log)
	if err != nil {
		return err
	}

	go func() {
		if err := w.Run(ctx, onChange); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("watcher stopped")
		}
	}()
	return nil
}
