// Package main implements the broadlisten CLI: it loads a run config,
// prints the execution plan, and drives the pipeline to completion.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/csvio"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
	"github.com/takahashim/broadlistening-go/internal/logging"
	"github.com/takahashim/broadlistening-go/internal/pipeline"
	"github.com/takahashim/broadlistening-go/internal/progress"
)

var (
	verbose         bool
	force           bool
	only            string
	skipInteraction bool
	fromStep        string
	inputDir        string
	showVersion     bool

	logger *zap.Logger
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "broadlisten CONFIG",
	Short:         "Run the broadlistening opinion-clustering pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		base, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Component(base, "cli")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runPipeline,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "Force every stage to re-run")
	rootCmd.Flags().StringVarP(&only, "only", "o", "", "Force exactly one stage to re-run")
	rootCmd.Flags().BoolVar(&skipInteraction, "skip-interaction", false, "Skip the plan confirmation prompt")
	rootCmd.Flags().StringVar(&fromStep, "from", "", "Resume starting at this step (requires --input-dir)")
	rootCmd.Flags().StringVar(&inputDir, "input-dir", "", "Directory to resume from (requires --from)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Print the version and exit")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println("broadlisten " + version)
		return nil
	}
	if (fromStep == "") != (inputDir == "") {
		return fmt.Errorf("config error: --from and --input-dir must be used together")
	}

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	outputDir := filepath.Join("output", cfg.Name)
	if cfg.Name == "" {
		outputDir = filepath.Join("output", "run")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("config error: create output dir: %w", err)
	}

	client, err := llm.New(llm.Config{
		Provider:        cfg.Provider,
		Model:           cfg.Model,
		EmbeddingModel:  cfg.EmbeddingModel,
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.APIBaseURL,
		AzureAPIVersion: cfg.AzureAPIVersion,
	})
	if err != nil {
		return err
	}

	status, err := pipeline.LoadStatus(outputDir)
	if err != nil {
		return err
	}
	params := pipeline.CurrentParams(cfg)
	plan := pipeline.Plan(outputDir, status, pipeline.PlanOptions{Force: force, Only: only}, params)

	printPlan(plan)
	if !skipInteraction {
		fmt.Println("Press enter to continue...")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comments, err := loadComments(cfg)
	if err != nil {
		return err
	}

	opts := pipeline.RunOptions{
		Force:     force,
		Only:      only,
		FromStep:  fromStep,
		InputDir:  inputDir,
		OutputDir: outputDir,
	}

	_, runErr := pipeline.RunWithComments(ctx, cfg, client, progress.Stdout{}, logger, opts, comments)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			_ = logger.Sync()
			os.Exit(130)
		}
		return runErr
	}
	return nil
}

func loadComments(cfg *config.Config) ([]domain.Comment, error) {
	if cfg.Input == "" {
		return nil, nil
	}
	comments, err := csvio.ReadComments(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("config error: load input: %w", err)
	}
	return comments, nil
}

func printPlan(plan []domain.PlanStep) {
	for _, step := range plan {
		action := "SKIP"
		if step.Run {
			action = "RUN"
		}
		fmt.Printf("%-20s %-5s %s\n", step.Step, action, step.Reason)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
