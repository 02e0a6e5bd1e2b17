// Package main provides the CLI entrypoint for gainview.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/gainview/internal/analysis"
	"github.com/verte-zerg/gainview/internal/api"
	"github.com/verte-zerg/gainview/internal/auth"
	"github.com/verte-zerg/gainview/internal/authui"
	"github.com/verte-zerg/gainview/internal/config"
	"github.com/verte-zerg/gainview/internal/dashboard"
	"github.com/verte-zerg/gainview/internal/logging"
	"github.com/verte-zerg/gainview/internal/model"
	"github.com/verte-zerg/gainview/internal/session"
	"github.com/verte-zerg/gainview/internal/store"
	"github.com/verte-zerg/gainview/internal/transcript"
)

const (
	defaultBaseURL    = "http://localhost:5000/api/v1"
	defaultTimeoutSec = 60
	defaultPlotHeight = 10
	defaultLogLevel   = "info"
)

var (
	rootBaseURL string
	rootTimeout int

	dashPlotHeight int
	dashShowGraph  bool
	dashShowTopics bool
)

// settings is the effective configuration after merging flags, env and file.
type settings struct {
	BaseURL    string
	Timeout    time.Duration
	PlotHeight int
	ShowGraph  bool
	ShowTopics bool
	LogLevel   slog.Level
	LogFile    string
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gainview",
		Short:        "Terminal client for transcript gain analysis",
		SilenceUsage: true,
		RunE:         runDashboardCmd,
	}

	rootCmd.PersistentFlags().StringVar(&rootBaseURL, "base-url", defaultBaseURL, "analysis service base URL (env "+config.BaseURLEnv+")")
	rootCmd.PersistentFlags().IntVar(&rootTimeout, "timeout", defaultTimeoutSec, "request timeout in seconds")
	rootCmd.Flags().IntVar(&dashPlotHeight, "plot-height", defaultPlotHeight, "gain chart height in rows")
	rootCmd.Flags().BoolVar(&dashShowGraph, "show-graph", false, "show the gain graph when an analysis is ready")
	rootCmd.Flags().BoolVar(&dashShowTopics, "show-topics", false, "show the topic list when an analysis is ready")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newSignupCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newGainCmd())
	rootCmd.AddCommand(newTopicsCmd())
	rootCmd.AddCommand(newProgressCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// app holds the services shared by every command.
type app struct {
	settings settings
	log      *slog.Logger
	store    *store.Store
	session  *session.Provider
	client   *api.Client
	auth     *auth.Service
	closers  []func() error
}

func openApp(cmd *cobra.Command) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := resolveSettings(cmd, fileCfg)
	if err != nil {
		return nil, err
	}

	a := &app{settings: cfg}
	logger, closeLog, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logErrf("logging disabled: %v\n", err)
		logger = logging.Discard()
	} else {
		a.closers = append(a.closers, closeLog)
	}
	slog.SetDefault(logger)
	a.log = logger

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	sess, err := session.Open(cmd.Context(), st)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	a.session = sess

	client, err := api.New(cfg.BaseURL, cfg.Timeout, sess)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	a.auth = auth.NewService(client, sess, logger)
	logger.Debug("client ready", "base_url", client.BaseURL(), "timeout", cfg.Timeout)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logErrf("failed to close: %v\n", err)
		}
	}
	a.closers = nil
}

func (a *app) requireAuth() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("%s (run: gainview login)", auth.ProtectedMessage)
	}
	return nil
}

func (a *app) newWorkflow() *analysis.Workflow {
	return analysis.New(a.client, analysis.Options{
		History:    a.store,
		Logger:     a.log,
		ShowGraph:  a.settings.ShowGraph,
		ShowTopics: a.settings.ShowTopics,
	})
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// A session that ends while the dashboard runs closes it and returns to the login form.
	var running atomic.Pointer[tea.Program]
	unsubscribe := a.session.Subscribe(func(s model.Session) {
		a.log.Info("session changed", "authenticated", s.IsAuthenticated)
		if p := running.Load(); p != nil && !s.IsAuthenticated {
			p.Send(dashboard.SessionEndedMsg{})
		}
	})
	defer unsubscribe()

	notice := ""
	if !a.session.IsAuthenticated() {
		notice = auth.ProtectedMessage
	}
	for {
		if !a.session.IsAuthenticated() {
			form := authui.New(a.auth, authui.ModeLogin, notice, a.settings.Timeout)
			if _, err := tea.NewProgram(form, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("failed to run TUI: %w", err)
			}
			if _, ok := form.Result(); !ok {
				return nil
			}
			notice = ""
		}

		state := a.session.State()
		board := dashboard.New(a.newWorkflow(), dashboard.Options{
			User:       *state.User,
			PlotHeight: a.settings.PlotHeight,
			LoadFile:   transcript.Load,
			Logout:     a.auth.Logout,
		})
		program := tea.NewProgram(board, tea.WithAltScreen())
		running.Store(program)
		_, err := program.Run()
		running.Store(nil)
		if err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		if a.session.IsAuthenticated() {
			return nil
		}
	}
}

func resolveSettings(cmd *cobra.Command, fileCfg config.FileConfig) (settings, error) {
	baseURL := rootBaseURL
	timeout := rootTimeout
	plotHeight := dashPlotHeight
	showGraph := dashShowGraph
	showTopics := dashShowTopics
	logLevel := defaultLogLevel
	logFile := config.DefaultLogPath()

	applyStringConfig(cmd, "base-url", &baseURL, fileCfg.Server.BaseURL)
	applyStringConfig(cmd, "base-url", &baseURL, config.EnvBaseURL())
	applyIntConfig(cmd, "timeout", &timeout, fileCfg.Server.Timeout)
	applyIntConfig(cmd, "plot-height", &plotHeight, fileCfg.Dashboard.PlotHeight)
	applyBoolConfig(cmd, "show-graph", &showGraph, fileCfg.Dashboard.ShowGraph)
	applyBoolConfig(cmd, "show-topics", &showTopics, fileCfg.Dashboard.ShowTopics)
	applyStringConfig(cmd, "", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "", &logFile, fileCfg.Log.File)

	if strings.TrimSpace(baseURL) == "" {
		return settings{}, fmt.Errorf("--base-url must not be empty")
	}
	if timeout <= 0 {
		return settings{}, fmt.Errorf("--timeout must be > 0")
	}
	if plotHeight <= 0 {
		return settings{}, fmt.Errorf("--plot-height must be > 0")
	}
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return settings{}, err
	}
	return settings{
		BaseURL:    strings.TrimSpace(baseURL),
		Timeout:    time.Duration(timeout) * time.Second,
		PlotHeight: plotHeight,
		ShowGraph:  showGraph,
		ShowTopics: showTopics,
		LogLevel:   level,
		LogFile:    logFile,
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# gainview configuration
# Uncomment a value to enable it. CLI flags and %s override config values.

[server]
# base-url = %q   # Analysis service base URL
# timeout = %d                                # Request timeout in seconds

[dashboard]
# plot-height = %d      # Gain chart height in rows
# show-graph = false    # Show the gain graph once an analysis is ready
# show-topics = false   # Show the topic list once an analysis is ready

[log]
# level = %q        # debug, info, warn or error
# file = %q
`,
		config.BaseURLEnv,
		defaultBaseURL,
		defaultTimeoutSec,
		defaultPlotHeight,
		defaultLogLevel,
		config.DefaultLogPath(),
	)
}

// applyStringConfig copies value into target unless the named flag was set.
// An empty name marks a setting with no flag.
func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if name == "" || cmd.Flags().Lookup(name) == nil {
		return false
	}
	return cmd.Flags().Changed(name)
}

func withTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
