// Package main provides the CLI entrypoint for heartaudit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/heartaudit/internal/advisor"
	"github.com/verte-zerg/heartaudit/internal/config"
	"github.com/verte-zerg/heartaudit/internal/dataset"
	"github.com/verte-zerg/heartaudit/internal/logging"
	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/reportui"
	"github.com/verte-zerg/heartaudit/internal/scoring"
	"github.com/verte-zerg/heartaudit/internal/stats"
	"github.com/verte-zerg/heartaudit/internal/store"
)

const (
	defaultRows = 20
	defaultTop  = 5
)

var (
	datasetURL     string
	timeoutSeconds int
	useCache       bool
	offline        bool
	threshold      float64
	gapAlert       float64
	logLevel       string
	advisorModel   string
	advisorBaseURL string
	apiKeyEnv      string

	outputFormat string
	predictTop   int
	predictAsk   bool
	featureFlags = map[string]*float64{}
	datasetRows  int
	pruneKeep    int
)

// app carries what PersistentPreRunE resolved for the running command.
type app struct {
	coeffs scoring.CoefficientSet
	logger *slog.Logger
}

var current app

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the process exit code.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "heartaudit",
		Short:             "Fairness audit for a heart-disease risk model",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setup,
		RunE:              runUICmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&datasetURL, "url", config.DefaultDatasetURL, "dataset CSV url")
	pf.IntVar(&timeoutSeconds, "timeout", config.DefaultTimeoutSeconds, "dataset fetch timeout in seconds")
	pf.BoolVar(&useCache, "cache", true, "keep fetched snapshots for offline use")
	pf.BoolVar(&offline, "offline", false, "skip the network and use the newest cached snapshot")
	pf.Float64Var(&threshold, "threshold", scoring.DefaultThreshold, "decision threshold (0-1)")
	pf.Float64Var(&gapAlert, "gap-alert", stats.DefaultGapAlert, "recall gap that triggers a disparity notice")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newPredictCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newDatasetCmd())
	rootCmd.AddCommand(newSnapshotsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "config" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logErrf("failed to load .env: %v\n", err)
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "url", &datasetURL, fileCfg.Dataset.URL)
	applyIntConfig(cmd, "timeout", &timeoutSeconds, fileCfg.Dataset.TimeoutSeconds)
	applyBoolConfig(cmd, "cache", &useCache, fileCfg.Dataset.Cache)
	applyFloatConfig(cmd, "threshold", &threshold, fileCfg.Audit.Threshold)
	applyFloatConfig(cmd, "gap-alert", &gapAlert, fileCfg.Audit.GapAlert)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)

	advisorModel = stringOr(fileCfg.Advisor.Model, config.DefaultAdvisorModel)
	advisorBaseURL = stringOr(fileCfg.Advisor.BaseURL, config.DefaultAdvisorBaseURL)
	apiKeyEnv = stringOr(fileCfg.Advisor.APIKeyEnv, config.DefaultAPIKeyEnv)

	if err := validateSettings(); err != nil {
		return err
	}
	coeffs, err := fileCfg.Model.Coefficients()
	if err != nil {
		return err
	}
	current = app{coeffs: coeffs, logger: logging.NewCLILogger(logLevel)}
	return nil
}

func runUICmd(cmd *cobra.Command, _ []string) error {
	res := loadDataset(cmd.Context())
	labeled, skipped := dataset.Labeled(res.Records)
	sel := stats.SexSelector()
	cases, err := stats.ScoreCases(labeled, current.coeffs, sel)
	if err != nil {
		return fmt.Errorf("failed to score dataset: %w", err)
	}
	m, err := reportui.NewModel(reportui.Input{
		Records:   res.Records,
		Cases:     cases,
		Selector:  sel,
		Threshold: threshold,
		GapAlert:  gapAlert,
		Source:    string(res.Origin),
		Notice:    loadNotice(res, skipped),
	})
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one patient and explain the prediction",
		Args:  cobra.NoArgs,
		RunE:  runPredictCmd,
	}
	defaults := model.DefaultPatient()
	for _, name := range model.FeatureNames {
		v, _ := defaults.Feature(name)
		featureFlags[name] = cmd.Flags().Float64(name, v, model.FeatureLabel(name))
	}
	cmd.Flags().IntVar(&predictTop, "top", defaultTop, "number of contributions to show (0 for all)")
	cmd.Flags().BoolVar(&predictAsk, "explain", false, "ask the advisor for a narrative explanation")
	cmd.Flags().StringVar(&outputFormat, "format", formatText, "output format (text, json, yaml)")
	return cmd
}

type prediction struct {
	Patient       model.Record         `json:"patient" yaml:"patient"`
	LogOdds       float64              `json:"log_odds" yaml:"log_odds"`
	Probability   float64              `json:"probability" yaml:"probability"`
	Risk          string               `json:"risk" yaml:"risk"`
	Threshold     float64              `json:"threshold" yaml:"threshold"`
	Positive      bool                 `json:"positive" yaml:"positive"`
	Contributions []model.Contribution `json:"contributions" yaml:"contributions"`
	Explanation   string               `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

func runPredictCmd(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(outputFormat); err != nil {
		return err
	}
	patient := model.DefaultPatient()
	for _, name := range model.FeatureNames {
		if !cmd.Flags().Changed(name) {
			continue
		}
		var err error
		if patient, err = patient.WithFeature(name, *featureFlags[name]); err != nil {
			return err
		}
	}
	if err := patient.Validate(); err != nil {
		return fmt.Errorf("invalid patient: %w", err)
	}

	z, err := scoring.LogOdds(patient, current.coeffs)
	if err != nil {
		return err
	}
	p := scoring.Logistic(z)
	contribs, err := scoring.Explain(patient, current.coeffs)
	if err != nil {
		return err
	}
	out := prediction{
		Patient:       patient,
		LogOdds:       z,
		Probability:   p,
		Risk:          scoring.RiskLabelAt(p, threshold),
		Threshold:     threshold,
		Positive:      scoring.Classify(p, threshold),
		Contributions: contribs,
	}
	if predictAsk {
		adv := advisor.New(os.Getenv(apiKeyEnv), advisorBaseURL, advisorModel, current.logger.WithGroup("advisor"))
		out.Explanation = adv.Explain(cmd.Context(), patient, p, threshold, contribs)
	}

	w := cmd.OutOrStdout()
	if outputFormat != formatText {
		return writeStructured(w, outputFormat, out)
	}
	if err := stats.RenderPrediction(w, p, threshold); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	if err := stats.RenderContributions(w, contribs, predictTop); err != nil {
		return err
	}
	if out.Explanation != "" {
		if _, err := fmt.Fprintf(w, "\nAI Insight\n%s\n", out.Explanation); err != nil {
			return err
		}
	}
	return nil
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the fairness report for the dataset",
		Args:  cobra.NoArgs,
		RunE:  runAuditCmd,
	}
	cmd.Flags().StringVar(&outputFormat, "format", formatText, "output format (text, json, yaml)")
	return cmd
}

func runAuditCmd(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(outputFormat); err != nil {
		return err
	}
	res := loadDataset(cmd.Context())
	labeled, skipped := dataset.Labeled(res.Records)
	if skipped > 0 {
		current.logger.Warn("skipping unlabeled records", "count", skipped)
	}
	report, err := stats.BuildReportAt(labeled, current.coeffs, stats.SexSelector(), threshold)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	w := cmd.OutOrStdout()
	if outputFormat != formatText {
		return writeStructured(w, outputFormat, report)
	}
	if _, err := fmt.Fprintln(w, loadSummary(res)); err != nil {
		return err
	}
	return stats.RenderReport(w, report, gapAlert)
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Show per-group recall across decision thresholds",
		Args:  cobra.NoArgs,
		RunE:  runSweepCmd,
	}
	cmd.Flags().StringVar(&outputFormat, "format", formatText, "output format (text, json, yaml)")
	return cmd
}

func runSweepCmd(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(outputFormat); err != nil {
		return err
	}
	res := loadDataset(cmd.Context())
	labeled, _ := dataset.Labeled(res.Records)
	sel := stats.SexSelector()
	cases, err := stats.ScoreCases(labeled, current.coeffs, sel)
	if err != nil {
		return fmt.Errorf("failed to score dataset: %w", err)
	}
	points := stats.Sweep(cases, sel, stats.DefaultThresholds())
	w := cmd.OutOrStdout()
	if outputFormat != formatText {
		return writeStructured(w, outputFormat, points)
	}
	if len(cases) == 0 {
		_, err := fmt.Fprintln(w, "No labeled records loaded.")
		return err
	}
	return stats.RenderSweep(w, points, 0, 0, false)
}

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Show the first rows of the dataset",
		Args:  cobra.NoArgs,
		RunE:  runDatasetCmd,
	}
	cmd.Flags().IntVar(&datasetRows, "rows", defaultRows, "rows to show (0 for all)")
	return cmd
}

func runDatasetCmd(cmd *cobra.Command, _ []string) error {
	if datasetRows < 0 {
		return fmt.Errorf("--rows must be >= 0")
	}
	res := loadDataset(cmd.Context())
	w := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(w, loadSummary(res)); err != nil {
		return err
	}
	return stats.RenderRecords(w, res.Records, datasetRows)
}

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List cached dataset snapshots",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotsCmd,
	}
	cmd.Flags().IntVar(&pruneKeep, "prune", -1, "keep only the newest N snapshots of the dataset url")
	return cmd
}

func runSnapshotsCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open snapshot cache: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close snapshot cache: %v\n", cerr)
		}
	}()
	if cmd.Flags().Changed("prune") {
		removed, err := st.PruneSnapshots(cmd.Context(), datasetURL, pruneKeep)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
		current.logger.Info("pruned snapshots", "removed", removed)
	}
	snaps, err := st.ListSnapshots(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	return stats.RenderSnapshots(cmd.OutOrStdout(), snaps)
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
		template := config.Template(scoring.DefaultThreshold, stats.DefaultGapAlert)
		if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
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

// loadDataset runs the loader with the snapshot cache when enabled. It
// never fails; problems are logged and degrade the result.
func loadDataset(ctx context.Context) dataset.Result {
	logger := current.logger.WithGroup("dataset")
	loader := &dataset.Loader{
		URL:     datasetURL,
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Offline: offline,
		Logger:  logger,
	}
	if useCache || offline {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			logger.Warn("snapshot cache unavailable", "err", err)
		} else {
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logErrf("failed to close snapshot cache: %v\n", cerr)
				}
			}()
			loader.Cache = st
		}
	}
	return loader.Load(ctx)
}

func loadSummary(res dataset.Result) string {
	summary := fmt.Sprintf("Loaded %d records (%s)", len(res.Records), res.Origin)
	if res.Dropped > 0 {
		summary += fmt.Sprintf(", dropped %d malformed rows", res.Dropped)
	}
	if res.Origin == dataset.OriginCache && res.Snapshot != nil {
		summary += fmt.Sprintf(", snapshot from %s", res.Snapshot.FetchedAt.Local().Format("2006-01-02 15:04"))
	}
	return summary
}

func loadNotice(res dataset.Result, skipped int) string {
	var parts []string
	if res.FetchErr != nil {
		parts = append(parts, fmt.Sprintf("fetch failed, using %s data: %v", res.Origin, res.FetchErr))
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d unlabeled records excluded from metrics", skipped))
	}
	return strings.Join(parts, "; ")
}

func validateSettings() error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("--threshold must be between 0 and 1")
	}
	if gapAlert < 0 || gapAlert > 1 {
		return fmt.Errorf("--gap-alert must be between 0 and 1")
	}
	if timeoutSeconds <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if strings.TrimSpace(datasetURL) == "" {
		return fmt.Errorf("--url must not be empty")
	}
	return nil
}

func stringOr(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return *value
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
