package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/treescope/pkg/config"
	"github.com/vanderheijden86/treescope/pkg/ui"
	"github.com/vanderheijden86/treescope/pkg/watcher"
)

func tuiCmd(a *app) *cobra.Command {
	var (
		backend string
		scanDir string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "tui [payload]",
		Short: "Browse the tree in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend != "" {
				a.cfg.Server.Backend = backend
			}
			src, err := a.resolveSource(args, scanDir)
			if err != nil && (len(args) > 0 || scanDir != "") {
				return err
			}
			if src.path != "" {
				a.remember(src.path)
			}

			m := ui.NewModel(ui.Options{
				Session: a.cfg.SessionOptions(),
				Source: ui.Source{
					Path:    src.path,
					Dir:     src.dir,
					Backend: a.backend(),
				},
				SnapshotDir: config.StateDir(),
				Field:       a.cfg.SearchField(),
			})

			var w *watcher.Watcher
			if !src.empty() && a.cfg.Watch.Enabled && !noWatch {
				// The alt screen owns the terminal; watcher warnings are dropped.
				w, err = watcher.New(src.watchPath(), a.watchOptions(src, log.New(io.Discard, "", 0))...)
				if err != nil {
					return err
				}
			}
			return runTUIProgram(cmd.Context(), m, w)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "analysis backend URL (default from config)")
	cmd.Flags().StringVar(&scanDir, "scan", "", "build the tree from this directory")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "don't reload when the source changes")
	return cmd
}

func runTUIProgram(ctx context.Context, m ui.Model, w *watcher.Watcher) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-ctx.Done():
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	if w != nil {
		go func() { _ = w.Run(ctx) }()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-w.Changes():
					p.Send(ui.FileChangedMsg{})
				}
			}
		}()
	}

	_, err := p.Run()
	return err
}
