package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tmpim/asciiplay/host"
	"github.com/tmpim/asciiplay/stream"
	"github.com/tmpim/asciiplay/stream/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the player API and stream frames to websocket clients",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			watch = watch || cfg.Watch.Enabled

			log, closer, err := ctx.logger(nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			mgr, err := stream.NewManager(sessionOptions(cfg, log))
			if err != nil {
				return err
			}
			defer mgr.Close()
			mgr.Audio().SetVolume(cfg.Player.Volume)

			if len(args) == 1 {
				if _, err := mgr.Open(runCtx, args[0]); err != nil {
					return err
				}
			}

			e := server.New(mgr, server.Options{
				HandshakeTimeout: cfg.HandshakeTimeout(),
				AllowOrigins:     cfg.Server.AllowOrigins,
				Log:              log,
			})

			g, gctx := errgroup.WithContext(runCtx)

			g.Go(func() error {
				log.WithField("bind", cfg.Server.Bind).Info("serving player API")
				if err := e.Start(cfg.Server.Bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			})

			if watch && len(args) == 1 {
				w, err := host.NewWatcher(args[0], cfg.Watch.Patterns, cfg.WatchDebounce(), log)
				if err != nil {
					return err
				}
				g.Go(func() error {
					err := w.Run(gctx, func() {
						if _, err := mgr.Open(gctx, mgr.Session().Path()); err != nil {
							log.WithError(err).Warn("reload failed")
						}
					})
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Address to listen on, overriding server.bind")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload when the frame directory changes")
	return cmd
}
