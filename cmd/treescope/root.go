package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/treescope/pkg/config"
	"github.com/vanderheijden86/treescope/pkg/debug"
	"github.com/vanderheijden86/treescope/pkg/loader"
	"github.com/vanderheijden86/treescope/pkg/metrics"
	"github.com/vanderheijden86/treescope/pkg/version"
	"github.com/vanderheijden86/treescope/pkg/watcher"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}

	root := &cobra.Command{
		Use:   "treescope",
		Short: "Explore hierarchical analyses as a collapsible tree",
		Long: brand.Sprint("treescope") + " lays out a tree payload and lets you fold, search and zoom it\n" +
			subtle.Sprint("Serve it to a browser, browse it in the terminal or render a snapshot"),
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				debug.SetEnabled(true)
				debug.SetOutput(cmd.ErrOrStderr())
				metrics.SetEnabled(true)
			}
			return a.loadConfig()
		},
	}
	root.SetVersionTemplate("treescope {{ .Version }}\n")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output and timings to stderr")

	root.AddCommand(
		serveCmd(a),
		tuiCmd(a),
		snapshotCmd(a),
		scanCmd(a),
		uploadCmd(a),
		versionCmd(),
	)
	return root
}

func (a *app) loadConfig() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFrom(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	return err
}

// remember records path in the recent list. Failures only matter for the
// next start, so they are logged and dropped.
func (a *app) remember(path string) {
	a.cfg.AddRecent(path)
	var err error
	if a.configPath != "" {
		err = config.SaveTo(a.cfg, a.configPath)
	} else {
		err = config.Save(a.cfg)
	}
	if err != nil {
		debug.Log("config: %v", err)
	}
}

// backend returns a client for the configured analysis backend, or nil when
// none is configured.
func (a *app) backend() *loader.Client {
	if a.cfg.Server.Backend == "" {
		return nil
	}
	return loader.NewClient(a.cfg.Server.Backend, a.cfg.Server.BackendTimeout)
}

// watchOptions builds watcher options from the config. Scanned directories
// only react to the document types the scan picks up.
func (a *app) watchOptions(src source, logger *log.Logger) []watcher.Option {
	opts := []watcher.Option{
		watcher.WithDebounceDuration(a.cfg.Watch.Debounce),
		watcher.WithPollInterval(a.cfg.Watch.PollInterval),
		watcher.WithForcePoll(a.cfg.Watch.ForcePoll),
		watcher.WithOnError(func(err error) {
			logger.Printf("warning: watcher: %v", err)
		}),
	}
	if src.dir != "" {
		opts = append(opts, watcher.WithFilter(scannable))
	}
	return opts
}

func scannable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(loader.AllowedExtensions, ext)
}

// source is where a command reads its tree from: a payload file (or a
// directory holding one) or a directory scanned into a payload.
type source struct {
	path string
	dir  string
}

// resolveSource picks the payload for args. With no argument and no scan
// directory the most recent payload is tried, then $TREESCOPE_DIR.
func (a *app) resolveSource(args []string, scanDir string) (source, error) {
	if scanDir != "" {
		return source{dir: scanDir}, nil
	}
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	if arg == "" && os.Getenv(loader.PayloadDirEnvVar) == "" {
		if last := a.cfg.LastPayload(); last != "" {
			if _, err := os.Stat(last); err == nil {
				return source{path: last}, nil
			}
		}
	}
	path, err := loader.ResolvePath(arg)
	if err != nil {
		return source{}, err
	}
	return source{path: path}, nil
}

func (s source) empty() bool { return s.path == "" && s.dir == "" }

// watchPath is the file or directory to watch for changes.
func (s source) watchPath() string {
	if s.dir != "" {
		return s.dir
	}
	return s.path
}

func (s source) String() string {
	if s.dir != "" {
		return s.dir + string(filepath.Separator)
	}
	return s.path
}

// read returns the payload bytes.
func (s source) read(ctx context.Context) ([]byte, error) {
	if s.dir != "" {
		root, err := loader.ScanDir(ctx, s.dir, loader.ScanOptions{})
		if err != nil {
			return nil, err
		}
		return root.Payload()
	}
	return loader.LoadFile(s.path)
}

// unwrapTree returns a backend tree as plain JSON. The backend sometimes
// sends the tree as a JSON string holding the document.
func unwrapTree(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, `"`) {
		return []byte(trimmed), nil
	}
	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	return []byte(inner), nil
}

// splitList splits a comma separated flag value.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
