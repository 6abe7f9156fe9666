// Package main provides the CLI entrypoint for endure.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/endure/internal/audio"
	"github.com/verte-zerg/endure/internal/config"
	"github.com/verte-zerg/endure/internal/engine"
	"github.com/verte-zerg/endure/internal/generator"
	"github.com/verte-zerg/endure/internal/model"
	"github.com/verte-zerg/endure/internal/stats"
	"github.com/verte-zerg/endure/internal/statsui"
	"github.com/verte-zerg/endure/internal/store"
	"github.com/verte-zerg/endure/internal/tui"
)

const (
	defaultTimer1Min  = 20
	defaultTimer1Max  = 60
	defaultMaxRepeats = 12
	defaultTimer2Min  = 60
	defaultTimer2Max  = 180
	defaultCooldown   = int(engine.DefaultCooldown / time.Second)
	defaultWarnDelay  = int(engine.DefaultWarnDelay / time.Second)
	defaultLogLevel   = "info"
)

var (
	logLevel string
	logger   = zerolog.Nop()

	gameTimer1Min  int
	gameTimer1Max  int
	gameMaxRepeats int
	gameTimer2     bool
	gameTimer2Min  int
	gameTimer2Max  int
	gameCooldown   int
	gameWarnDelay  int
	gameMute       bool
	gameHaptics    bool
	gameCuesDir    string
	gameSeed       int64

	statsSince string
	statsLast  int
	statsPlain bool
	statsPDF   string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "endure",
		Short:             "Interval cue game for the terminal",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setupLogging,
		RunE:              runGameCmd,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.Flags().IntVar(&gameTimer1Min, "timer1-min", defaultTimer1Min, "timer 1 minimum seconds")
	rootCmd.Flags().IntVar(&gameTimer1Max, "timer1-max", defaultTimer1Max, "timer 1 maximum seconds")
	rootCmd.Flags().IntVar(&gameMaxRepeats, "max-repeats", defaultMaxRepeats, "timer 1 repeats before the limit cue")
	rootCmd.Flags().BoolVar(&gameTimer2, "timer2", true, "enable timer 2")
	rootCmd.Flags().IntVar(&gameTimer2Min, "timer2-min", defaultTimer2Min, "timer 2 minimum seconds")
	rootCmd.Flags().IntVar(&gameTimer2Max, "timer2-max", defaultTimer2Max, "timer 2 maximum seconds")
	rootCmd.Flags().IntVar(&gameCooldown, "cooldown", defaultCooldown, "seconds the gate stays closed after a sequence")
	rootCmd.Flags().IntVar(&gameWarnDelay, "warn-delay", defaultWarnDelay, "seconds between the warn and go cues")
	rootCmd.Flags().BoolVar(&gameMute, "mute", false, "disable audio cues")
	rootCmd.Flags().BoolVar(&gameHaptics, "haptics", true, "play a short pulse before each cue")
	rootCmd.Flags().StringVar(&gameCuesDir, "cues-dir", "", "directory with <cue>.wav or <cue>.ogg overrides")
	rootCmd.Flags().Int64Var(&gameSeed, "seed", 0, "random seed (0 picks one)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newScenariosCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	logger = zerolog.New(f).Level(level).With().Timestamp().Logger()
	return nil
}

type gameSettings struct {
	session   model.SessionConfig
	cooldown  time.Duration
	warnDelay time.Duration
	scenarios []model.Scenario
	audio     audio.Options
}

func runGameCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := resolveGameSettings(cmd, fileCfg)
	if err != nil {
		return err
	}
	if err := validateSettings(settings); err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	player := audio.Open(settings.audio)
	defer player.Close()

	var draw engine.RandomDraw = generator.New()
	if gameSeed != 0 {
		draw = generator.NewWithSeed(gameSeed)
	}
	ctrl := engine.New(engine.Options{
		Draw:      draw,
		Cues:      player,
		Haptics:   player,
		Stats:     st,
		Scenarios: settings.scenarios,
		Cooldown:  settings.cooldown,
		WarnDelay: settings.warnDelay,
		Logger:    logger,
	})
	defer func() {
		ctrl.Close()
		ctrl.Wait()
	}()

	m := tui.NewModel(ctrl, settings.session, st, logger)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func resolveGameSettings(cmd *cobra.Command, fileCfg config.FileConfig) (gameSettings, error) {
	applyConfig(cmd, "timer1-min", &gameTimer1Min, fileCfg.Timer1.Min)
	applyConfig(cmd, "timer1-max", &gameTimer1Max, fileCfg.Timer1.Max)
	applyConfig(cmd, "max-repeats", &gameMaxRepeats, fileCfg.Timer1.MaxRepeats)
	applyConfig(cmd, "timer2", &gameTimer2, fileCfg.Timer2.Enabled)
	applyConfig(cmd, "timer2-min", &gameTimer2Min, fileCfg.Timer2.Min)
	applyConfig(cmd, "timer2-max", &gameTimer2Max, fileCfg.Timer2.Max)
	applyConfig(cmd, "cooldown", &gameCooldown, fileCfg.Sequence.Cooldown)
	applyConfig(cmd, "warn-delay", &gameWarnDelay, fileCfg.Sequence.WarnDelay)
	applyConfig(cmd, "mute", &gameMute, fileCfg.Audio.Mute)
	applyConfig(cmd, "haptics", &gameHaptics, fileCfg.Audio.Haptics)
	applyConfig(cmd, "cues-dir", &gameCuesDir, fileCfg.Audio.CuesDir)

	scenarios, err := fileCfg.ScenarioSet()
	if err != nil {
		return gameSettings{}, fmt.Errorf("invalid config: %w", err)
	}
	if scenarios == nil {
		scenarios = engine.DefaultScenarios()
	}
	cuesDir := gameCuesDir
	if cuesDir == "" {
		cuesDir = config.DefaultCuesDir()
	}

	return gameSettings{
		session: model.SessionConfig{
			Timer1Range:      model.TimeRange{MinSeconds: gameTimer1Min, MaxSeconds: gameTimer1Max},
			Timer1MaxRepeats: gameMaxRepeats,
			Timer2Enabled:    gameTimer2,
			Timer2Range:      model.TimeRange{MinSeconds: gameTimer2Min, MaxSeconds: gameTimer2Max},
		},
		cooldown:  time.Duration(gameCooldown) * time.Second,
		warnDelay: time.Duration(gameWarnDelay) * time.Second,
		scenarios: scenarios,
		audio: audio.Options{
			CuesDir: cuesDir,
			Mute:    gameMute,
			Haptics: gameHaptics,
			Logger:  logger,
		},
	}, nil
}

func validateSettings(s gameSettings) error {
	if err := validateRange("timer1", s.session.Timer1Range); err != nil {
		return err
	}
	if s.session.Timer1MaxRepeats < 1 {
		return fmt.Errorf("--max-repeats must be >= 1")
	}
	if s.session.Timer2Enabled {
		if err := validateRange("timer2", s.session.Timer2Range); err != nil {
			return err
		}
		if len(s.scenarios) == 0 {
			return fmt.Errorf("timer 2 needs at least one scenario")
		}
	}
	if s.cooldown < 0 {
		return fmt.Errorf("--cooldown must be >= 0")
	}
	if s.warnDelay < 0 {
		return fmt.Errorf("--warn-delay must be >= 0")
	}
	return nil
}

func validateRange(name string, r model.TimeRange) error {
	if r.MinSeconds < 1 {
		return fmt.Errorf("--%s-min must be >= 1", name)
	}
	if r.MinSeconds > r.MaxSeconds {
		return fmt.Errorf("--%s-min must be <= --%s-max", name, name)
	}
	return nil
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
		logger.Info().Str("path", path).Msg("config template written")
	}

	return openInEditor(path)
}

func openInEditor(path string) error {
	editor := strings.Fields(os.Getenv("EDITOR"))
	if len(editor) == 0 {
		editor = []string{"vi"}
	}
	cmd := exec.Command(editor[0], append(editor[1:], path)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor %q: %w", editor[0], err)
	}
	return nil
}

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List timer 2 scenarios",
		Args:  cobra.NoArgs,
		RunE:  runScenariosCmd,
	}
}

func runScenariosCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	scenarios, err := fileCfg.ScenarioSet()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if scenarios == nil {
		scenarios = engine.DefaultScenarios()
	}
	if err := stats.RenderScenarios(cmd.OutOrStdout(), scenarios); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print to stdout instead of the interactive view")
	cmd.Flags().StringVar(&statsPDF, "pdf", "", "export the history to a PDF file")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}

	cfg := model.StatsConfig{
		Since: sinceTime,
		Last:  statsLast,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsPlain || statsPDF != "" {
		report, err := stats.BuildReport(cmd.Context(), st, cfg)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		if statsPDF != "" {
			if err := stats.WritePDF(statsPDF, report, time.Now()); err != nil {
				return err
			}
			logErrf("Wrote %s\n", statsPDF)
			return nil
		}
		return renderPlainStats(cmd, report)
	}

	m := statsui.NewModel(st, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func renderPlainStats(cmd *cobra.Command, report stats.Report) error {
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report.Sessions, stats.TerminalWidth()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderSessionTable(out, report.Sessions, time.Now()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// applyConfig copies a file value into target unless the flag was set.
func applyConfig[T any](cmd *cobra.Command, name string, target, value *T) {
	if value != nil && !cmd.Flags().Changed(name) {
		*target = *value
	}
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# endure configuration
# Uncomment a value to enable it. CLI flags override config values.

[timer1]
# min = %d                # Minimum seconds between cues
# max = %d                # Maximum seconds between cues
# max-repeats = %d        # Repeats before the limit cue (grows by one each time)

[timer2]
# enabled = true
# min = %d                # Minimum seconds between scenarios
# max = %d               # Maximum seconds between scenarios

[sequence]
# cooldown = %d            # Seconds the gate stays closed after a sequence
# warn-delay = %d          # Seconds between the warn and go cues

[audio]
# mute = false
# haptics = true
# cues-dir = %q

# Scenario tables replace the built-in set when present.
# [[scenario]]
# name = "s1"
# warn-cue = "pop_warn_s1"
# delay-after-second = 4
# base-wait = 6
# jitter-max = 4
`,
		defaultTimer1Min,
		defaultTimer1Max,
		defaultMaxRepeats,
		defaultTimer2Min,
		defaultTimer2Max,
		defaultCooldown,
		defaultWarnDelay,
		config.DefaultCuesDir(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
