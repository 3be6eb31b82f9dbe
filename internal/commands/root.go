package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/proforma/internal/buildinfo"
	"github.com/cleared-dev/proforma/internal/config"
	"github.com/cleared-dev/proforma/internal/metrics"
	"github.com/cleared-dev/proforma/internal/oracle"
	"github.com/cleared-dev/proforma/internal/reconcile"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	workspace  string
	configPath string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "proforma",
		Short:   "Pro forma balance sheets from filings and subsequent changes",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.workspace, "workspace", "C", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default <workspace>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log.level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newReconcileCommand(g))
	rootCmd.AddCommand(newBatchCommand(g))
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newAuditCommand(g))

	return rootCmd
}

// workspace is a resolved workspace directory with its configuration.
type workspace struct {
	root string
	cfg  *config.Config
	log  zerolog.Logger
	// initialized is true when the config file exists. Audit logs and
	// commits are only written into initialized workspaces.
	initialized bool
}

func openWorkspace(cmd *cobra.Command, g *globalFlags) (*workspace, error) {
	root, err := filepath.Abs(g.workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	path := g.configPath
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(path)
	return &workspace{root: root, cfg: cfg, log: log, initialized: statErr == nil}, nil
}

func newLogger(c config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.Level != "" {
		l, err := zerolog.ParseLevel(c.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	out := w
	if c.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// path resolves p against the workspace root unless it is absolute.
func (ws *workspace) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ws.root, p)
}

// rel returns p relative to the workspace root, or false when p lies outside it.
func (ws *workspace) rel(p string) (string, bool) {
	r, err := filepath.Rel(ws.root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return r, true
}

// newOracle builds the configured correction oracle behind a circuit
// breaker. It returns a nil Oracle when none is configured. The returned
// close func stops a subprocess oracle.
func (ws *workspace) newOracle() (reconcile.Oracle, func() error, error) {
	noop := func() error { return nil }

	var next reconcile.Oracle
	closeFn := noop
	switch oc := ws.cfg.Oracle; {
	case len(oc.Command) > 0:
		c, err := oracle.StartCommand(oc.Command, nil)
		if err != nil {
			return nil, noop, err
		}
		ws.log.Info().Strs("command", oc.Command).Msg("started correction oracle")
		next, closeFn = c, c.Close
	case oc.ReplayFile != "":
		r, err := oracle.LoadReplay(ws.path(oc.ReplayFile))
		if err != nil {
			return nil, noop, err
		}
		ws.log.Info().Str("file", oc.ReplayFile).Int("corrections", r.Len()).Msg("loaded replayed corrections")
		next = r
	default:
		ws.log.Debug().Msg("no correction oracle configured")
		return nil, noop, nil
	}

	b := oracle.NewBreaker("correction-oracle", next, oracle.BreakerSettings{
		MaxFailures: ws.cfg.Oracle.Breaker.MaxFailures,
		OpenTimeout: ws.cfg.Oracle.Breaker.OpenTimeout,
		Logger:      &ws.log,
	})
	return b, closeFn, nil
}

func (ws *workspace) newEngine(m *metrics.Metrics) (*reconcile.Engine, func() error, error) {
	o, closeFn, err := ws.newOracle()
	if err != nil {
		return nil, nil, err
	}
	e := reconcile.New(reconcile.Options{
		Oracle:        o,
		OracleTimeout: ws.cfg.Oracle.Timeout,
		MaxDepth:      ws.cfg.Engine.MaxDepth,
		Logger:        &ws.log,
		Metrics:       m,
	})
	return e, closeFn, nil
}

// writeMetrics dumps m to the configured textfile, if any.
func (ws *workspace) writeMetrics(m *metrics.Metrics) {
	path := ws.path(ws.cfg.Metrics.Textfile)
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		ws.log.Warn().Err(err).Msg("creating metrics dir")
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		ws.log.Warn().Err(err).Msg("metrics not written")
	}
}
