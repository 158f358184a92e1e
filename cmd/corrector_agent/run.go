package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atreyu1968/manuscript-mender/internal/config"
	"github.com/atreyu1968/manuscript-mender/internal/correction"
	"github.com/atreyu1968/manuscript-mender/internal/db"
	"github.com/atreyu1968/manuscript-mender/internal/ledger"
	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/observability"
	"github.com/atreyu1968/manuscript-mender/internal/schemas"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run a correction batch over a manuscript",
	Long: `Reads a manuscript and an audit report, locates each issue in the text and
proposes corrections. Proposed corrections are printed for review; with
--auto-approve they are applied and the corrected manuscript is written out.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runBatchCmd,
}

var (
	runConfigPath  string
	runManuscript  string
	runAudit       string
	runOutput      string
	runAPIKey      string
	runDatabaseURL string
	runPauseMs     int
	runAutoApprove bool
	runVerbose     bool
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runManuscript, "manuscript", "m", "", "Path to manuscript text file")
	runCommand.Flags().StringVarP(&runAudit, "audit", "a", "", "Path to audit report JSON")
	runCommand.Flags().StringVarP(&runOutput, "output", "o", "", "Path for the corrected manuscript (defaults to <manuscript>.corregido.txt)")
	runCommand.Flags().IntVar(&runPauseMs, "pause", 0, "Pause between generative calls in milliseconds")
	runCommand.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "Apply every proposed correction without review")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for optional persistence of the run
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runBatchCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	if cmd.Flags().Changed("manuscript") {
		cfg.Manuscript = runManuscript
	}
	if cmd.Flags().Changed("audit") {
		cfg.Audit = runAudit
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = runOutput
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if cmd.Flags().Changed("pause") {
		cfg.PauseMs = runPauseMs
	}
	if cmd.Flags().Changed("auto-approve") {
		cfg.AutoApprove = runAutoApprove
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}

	// Step 3: Validate required fields
	if cfg.Manuscript == "" {
		return fmt.Errorf("--manuscript is required (via flag or config)")
	}
	if cfg.Audit == "" {
		return fmt.Errorf("--audit is required (via flag or config)")
	}
	if cfg.Output == "" {
		cfg.Output = cfg.Manuscript + ".corregido.txt"
	}

	// Step 4: API Key handling
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	// Step 5: Database URL is optional for local runs
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return runBatch(ctx, cfg)
}

func runBatch(ctx context.Context, cfg config.Config) error {
	content, err := os.ReadFile(cfg.Manuscript)
	if err != nil {
		return fmt.Errorf("failed to read manuscript: %w", err)
	}

	report, err := loadAuditReport(cfg.Audit)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		printer.PrintAuditReport(report)
	}

	client, err := llm.NewClient(ctx, nil, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create generative client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	manuscript := &types.CorrectedManuscript{
		ID:               uuid.NewString(),
		OriginalContent:  string(content),
		CorrectedContent: string(content),
		Status:           types.ManuscriptCorrecting,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	engine := correction.NewEngine(client, correction.Options{
		CallInterval: time.Duration(cfg.PauseMs) * time.Millisecond,
		OnProgress: func(event correction.ProgressEvent) {
			fmt.Printf("[%d/%d] %s: %s\n", event.Current, event.Total, event.Phase, event.Message)
		},
	})

	fmt.Printf("Running %d issues against %s...\n", len(report.Issues), cfg.Manuscript)
	if err := engine.Run(ctx, manuscript, report.Issues); err != nil {
		return fmt.Errorf("correction run failed: %w", err)
	}

	if cfg.Verbose {
		for i := range manuscript.Corrections {
			printer.PrintCorrection(&manuscript.Corrections[i])
		}
	}

	if cfg.AutoApprove {
		applyAll(manuscript)
	}

	printer.PrintReviewSummary(manuscript)

	if cfg.AutoApprove {
		if err := os.WriteFile(cfg.Output, []byte(manuscript.CorrectedContent), 0o644); err != nil {
			return fmt.Errorf("failed to write corrected manuscript: %w", err)
		}
		fmt.Printf("Corrected manuscript written to %s\n", cfg.Output)
	}

	// Persist the run when a database is configured, so the review can
	// continue over the HTTP API.
	if cfg.DatabaseURL != "" {
		if err := persistRun(ctx, cfg.DatabaseURL, manuscript); err != nil {
			return err
		}
		fmt.Printf("Run persisted as manuscript %s\n", manuscript.ID)
	}

	return nil
}

// loadAuditReport reads an audit report JSON file. Both a full report object
// and a bare issue array are accepted.
func loadAuditReport(path string) (*types.AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit report: %w", err)
	}

	var report types.AuditReport
	if err := json.Unmarshal(data, &report); err != nil || len(report.Issues) == 0 {
		var issues []types.AuditIssue
		if err := json.Unmarshal(data, &issues); err != nil {
			return nil, fmt.Errorf("failed to parse audit report JSON: %w", err)
		}
		report.Issues = issues
	} else if err := schemas.ValidateAuditReport(string(data)); err != nil {
		return nil, fmt.Errorf("invalid audit report: %w", err)
	}

	for i := range report.Issues {
		if report.Issues[i].ID == "" {
			report.Issues[i].ID = uuid.NewString()
		}
	}
	return &report, nil
}

// applyAll approves every pending non-structural correction. Structural
// records need an explicit resolution choice and are left pending.
func applyAll(m *types.CorrectedManuscript) {
	for i := range m.Corrections {
		record := &m.Corrections[i]
		if record.Status != types.CorrectionPending || record.IsStructural() {
			continue
		}
		if err := ledger.Approve(m, record.ID); err != nil {
			fmt.Printf("Skipping correction %s: %v\n", record.ID, err)
		}
	}
}

// persistRun stores the completed run so review can continue over HTTP.
func persistRun(ctx context.Context, databaseURL string, m *types.CorrectedManuscript) error {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.CreateManuscript(ctx, m.ID, "", m.OriginalContent); err != nil {
		return err
	}
	return database.SaveManuscript(ctx, m)
}
