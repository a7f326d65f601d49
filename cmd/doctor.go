package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/conneroisu/wasmreload/internal/config"
	"github.com/conneroisu/wasmreload/internal/toolchain"
	"github.com/conneroisu/wasmreload/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [project-dir]",
	Short: "Diagnose the build toolchain and project setup",
	Long: `Diagnose the development environment before serving a project.

The doctor command checks:

- The configuration loads and validates
- cargo is installed and recent enough
- The configured rustup target is installed
- The server port is free
- The project directory holds a Cargo.toml

Examples:
  wasmreload doctor                     # Diagnose the current directory
  wasmreload doctor ./my-crate          # Diagnose another project
  wasmreload doctor --format json       # Output as JSON for tooling`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

var (
	doctorVerbose bool
	doctorFormat  string
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name       string                 `json:"name" yaml:"name"`
	Category   string                 `json:"category" yaml:"category"`
	Status     string                 `json:"status" yaml:"status"` // "ok", "warning", "error", "info"
	Message    string                 `json:"message" yaml:"message"`
	Suggestion string                 `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

// DoctorReport represents the complete diagnostic report
type DoctorReport struct {
	Timestamp   time.Time          `json:"timestamp" yaml:"timestamp"`
	Project     string             `json:"project" yaml:"project"`
	Environment map[string]string  `json:"environment" yaml:"environment"`
	Results     []DiagnosticResult `json:"results" yaml:"results"`
	Summary     ReportSummary      `json:"summary" yaml:"summary"`
}

// ReportSummary provides an overview of diagnostic results
type ReportSummary struct {
	Total    int `json:"total" yaml:"total"`
	OK       int `json:"ok" yaml:"ok"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Errors   int `json:"errors" yaml:"errors"`
	Info     int `json:"info" yaml:"info"`
}

// doctorEnv is what every check inspects.
type doctorEnv struct {
	cfg        *config.Config
	cfgErr     error
	projectDir string
	inspector  *toolchain.Inspector
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Show verbose diagnostic information")
	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", "table", "Output format (table, json, yaml)")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	switch doctorFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", doctorFormat)
	}

	projectDir := "."
	if len(args) > 0 {
		projectDir = args[0]
	}
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.Defaults()
	}

	env := &doctorEnv{
		cfg:        cfg,
		cfgErr:     cfgErr,
		projectDir: projectDir,
		inspector:  toolchain.NewInspector(newRunner(), cfg.Build.Command),
	}

	report := diagnose(cmd.Context(), env)

	out := cmd.OutOrStdout()
	if doctorFormat == "table" {
		fmt.Fprintf(out, "🔍 wasmreload doctor: %s\n", report.Project)
		fmt.Fprintln(out, "==========================================")
		fmt.Fprintln(out)

		for _, result := range report.Results {
			if !doctorVerbose && result.Status == "info" {
				continue
			}
			displayResult(out, result)
		}

		fmt.Fprintln(out, "📊 Summary")
		fmt.Fprintln(out, "==========")
		displaySummary(out, report.Summary)
	} else if err := outputReport(out, report, doctorFormat); err != nil {
		return fmt.Errorf("failed to output report: %w", err)
	}

	if report.Summary.Errors > 0 {
		return fmt.Errorf("%d of %d checks failed", report.Summary.Errors, report.Summary.Total)
	}

	return nil
}

func diagnose(ctx context.Context, env *doctorEnv) *DoctorReport {
	if ctx == nil {
		ctx = context.Background()
	}

	report := &DoctorReport{
		Timestamp:   time.Now(),
		Project:     projectTitle(env.projectDir),
		Environment: gatherEnvironmentInfo(env),
	}

	checks := []func(context.Context, *doctorEnv) DiagnosticResult{
		checkConfiguration,
		checkCargo,
		checkTarget,
		checkPortAvailability,
		checkProject,
	}

	for _, check := range checks {
		report.Results = append(report.Results, check(ctx, env))
	}

	report.Summary = calculateSummary(report.Results)

	return report
}

func gatherEnvironmentInfo(env *doctorEnv) map[string]string {
	return map[string]string{
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"go_version":  runtime.Version(),
		"wasmreload":  version.Short(),
		"project_dir": env.projectDir,
		"config_file": viper.ConfigFileUsed(),
	}
}

func checkConfiguration(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Configuration",
		Category: "Config",
		Status:   "ok",
		Message:  "Configuration is valid",
	}

	if env.cfgErr != nil {
		result.Status = "error"
		result.Message = env.cfgErr.Error()
		result.Suggestion = "Fix " + config.DefaultFileName + " or run 'wasmreload config init --force'"
		return result
	}

	if viper.ConfigFileUsed() == "" {
		result.Status = "info"
		result.Message = "No configuration file, using defaults"
		result.Suggestion = "Run 'wasmreload config init' to write " + config.DefaultFileName
	}

	result.Details = map[string]interface{}{
		"address": env.cfg.Address(),
		"target":  env.cfg.Build.Target,
		"profile": env.cfg.Build.Profile,
	}

	return result
}

func checkCargo(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Cargo",
		Category: "Toolchain",
		Status:   "ok",
	}

	v, err := env.inspector.CargoVersion(ctx)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("%s is not usable: %v", env.cfg.Build.Command, err)
		result.Suggestion = "Install Rust with rustup: https://rustup.rs"
		return result
	}

	ok, err := toolchain.CheckMinimum(v, toolchain.MinimumCargo)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		return result
	}

	result.Details = map[string]interface{}{"version": v.String(), "required": toolchain.MinimumCargo}

	if !ok {
		result.Status = "error"
		result.Message = fmt.Sprintf("cargo %s does not satisfy %s", v, toolchain.MinimumCargo)
		result.Suggestion = "Run 'rustup update'"
		return result
	}

	result.Message = "cargo " + v.String()

	return result
}

func checkTarget(ctx context.Context, env *doctorEnv) DiagnosticResult {
	target := env.cfg.Build.Target
	result := DiagnosticResult{
		Name:     "Compilation Target",
		Category: "Toolchain",
		Status:   "ok",
		Message:  target + " is installed",
	}

	installed, err := env.inspector.HasTarget(ctx, target)
	if err != nil {
		result.Status = "warning"
		result.Message = "Could not list rustup targets: " + err.Error()
		result.Suggestion = "Make sure " + target + " is installed for the active toolchain"
		return result
	}

	if !installed {
		result.Status = "error"
		result.Message = target + " is not installed"
		result.Suggestion = "Run 'rustup target add " + target + "'"
	}

	return result
}

func checkPortAvailability(ctx context.Context, env *doctorEnv) DiagnosticResult {
	addr := env.cfg.Address()
	result := DiagnosticResult{
		Name:     "Port Availability",
		Category: "Network",
		Status:   "ok",
		Message:  addr + " is available",
	}

	if !toolchain.PortAvailable(addr) {
		result.Status = "warning"
		result.Message = addr + " is already in use"
		result.Suggestion = "Stop the other service or use 'wasmreload serve --port <port>'"
	}

	return result
}

func checkProject(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := DiagnosticResult{
		Name:     "Project",
		Category: "Project",
		Status:   "ok",
	}

	dir, err := config.ResolveProjectDir(env.projectDir)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		return result
	}

	manifest := filepath.Join(dir, "Cargo.toml")
	if _, err := os.Stat(manifest); err != nil {
		result.Status = "error"
		result.Message = "No Cargo.toml in " + dir
		result.Suggestion = "Point wasmreload at the crate root, or run 'cargo init --lib' there"
		return result
	}

	result.Message = "Found " + manifest

	return result
}

// projectTitle turns a crate directory such as my_game-client into
// "My Game Client".
func projectTitle(dir string) string {
	name := strings.NewReplacer("-", " ", "_", " ").Replace(filepath.Base(dir))
	return cases.Title(language.English).String(name)
}

func displayResult(out io.Writer, result DiagnosticResult) {
	var icon string
	switch result.Status {
	case "ok":
		icon = "✅"
	case "warning":
		icon = "⚠️"
	case "error":
		icon = "❌"
	case "info":
		icon = "ℹ️"
	default:
		icon = "•"
	}

	fmt.Fprintf(out, "%s [%s] %s: %s\n", icon, strings.ToUpper(result.Category), result.Name, result.Message)

	if result.Suggestion != "" {
		fmt.Fprintf(out, "   💡 %s\n", result.Suggestion)
	}

	if doctorVerbose && len(result.Details) > 0 {
		fmt.Fprintf(out, "   📋 Details: %+v\n", result.Details)
	}

	fmt.Fprintln(out)
}

func calculateSummary(results []DiagnosticResult) ReportSummary {
	summary := ReportSummary{
		Total: len(results),
	}

	for _, result := range results {
		switch result.Status {
		case "ok":
			summary.OK++
		case "warning":
			summary.Warnings++
		case "error":
			summary.Errors++
		case "info":
			summary.Info++
		}
	}

	return summary
}

func displaySummary(out io.Writer, summary ReportSummary) {
	fmt.Fprintf(out, "Total Checks: %d\n", summary.Total)
	fmt.Fprintf(out, "✅ OK: %d\n", summary.OK)
	fmt.Fprintf(out, "⚠️  Warnings: %d\n", summary.Warnings)
	fmt.Fprintf(out, "❌ Errors: %d\n", summary.Errors)
	fmt.Fprintf(out, "ℹ️  Info: %d\n", summary.Info)
}

func outputReport(out io.Writer, report *DoctorReport, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
