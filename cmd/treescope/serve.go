package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/treescope/pkg/server"
	"github.com/vanderheijden86/treescope/pkg/watcher"
)

func serveCmd(a *app) *cobra.Command {
	var (
		addr    string
		backend string
		scanDir string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "serve [payload]",
		Short: "Serve the explorer page over HTTP",
		Long: "Serve the explorer page and its API. The payload may be a JSON file or a\n" +
			"directory holding one; with --scan a directory is turned into a tree instead.\n" +
			"Without either the page starts empty and loads from the analysis backend.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if backend != "" {
				a.cfg.Server.Backend = backend
			}
			out := cmd.OutOrStdout()
			logger := log.New(cmd.ErrOrStderr(), "treescope: ", log.LstdFlags)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Options{
				Session: a.cfg.SessionOptions(),
				Backend: a.backend(),
				Logger:  logger,
			})

			src, err := a.resolveSource(args, scanDir)
			if err != nil && (len(args) > 0 || scanDir != "") {
				return err
			}
			if !src.empty() {
				data, err := src.read(ctx)
				if err != nil {
					return err
				}
				if err := srv.Load(data); err != nil {
					return fmt.Errorf("%s: %w", src, err)
				}
				if src.path != "" {
					a.remember(src.path)
				}
				info.Fprintf(out, "Loaded %s\n", src)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, a.cfg.Server.Addr, func(bound net.Addr) {
					brand.Fprintf(out, "Serving on http://%s\n", bound)
				})
			})

			if !src.empty() && a.cfg.Watch.Enabled && !noWatch {
				w, err := watcher.New(src.watchPath(), a.watchOptions(src, logger)...)
				if err != nil {
					return err
				}
				g.Go(func() error { return w.Run(gctx) })
				g.Go(func() error {
					for {
						select {
						case <-gctx.Done():
							return nil
						case <-w.Changes():
						}
						data, err := src.read(gctx)
						if err == nil {
							err = srv.Load(data)
						}
						if err != nil {
							logger.Printf("warning: reload %s: %v", src, err)
							continue
						}
						subtle.Fprintf(out, "Reloaded %s\n", src)
					}
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&backend, "backend", "", "analysis backend URL (default from config)")
	cmd.Flags().StringVar(&scanDir, "scan", "", "build the tree from this directory")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "don't reload when the source changes")
	return cmd
}
