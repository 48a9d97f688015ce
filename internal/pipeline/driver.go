package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/csvio"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/embedcache"
	"github.com/takahashim/broadlistening-go/internal/llm"
	"github.com/takahashim/broadlistening-go/internal/logging"
	"github.com/takahashim/broadlistening-go/internal/progress"
)

// ErrLocked is returned by Run when another run already holds the status
// lock for dir.
var ErrLocked = fmt.Errorf("pipeline: run is locked by another process")

// RunOptions carries the driver's invocation flags.
type RunOptions struct {
	Force     bool
	Only      string
	FromStep  string
	InputDir  string
	OutputDir string
}

// Run executes the pipeline against outputDir: it loads the prior status,
// checks the lock, plans RUN/SKIP for every stage, executes the RUN stages
// in order, and journals progress after each one so a crash mid-run can be
// resumed. It starts from an empty Context; callers that need to seed
// Comments for a from-scratch Extraction should use RunWithComments.
func Run(ctx context.Context, cfg *config.Config, client llm.Client, prog progress.Progress, logger *zap.Logger, opts RunOptions) ([]domain.PlanStep, error) {
	return run(ctx, cfg, client, prog, logger, opts, nil)
}

// RunWithComments is Run, but seeds the Context's Comments field from
// comments when the run is not resuming from --input-dir (a resumed run
// gets its upstream state from LoadFromDir instead).
func RunWithComments(ctx context.Context, cfg *config.Config, client llm.Client, prog progress.Progress, logger *zap.Logger, opts RunOptions, comments []domain.Comment) ([]domain.PlanStep, error) {
	return run(ctx, cfg, client, prog, logger, opts, comments)
}

func run(ctx context.Context, cfg *config.Config, client llm.Client, prog progress.Progress, logger *zap.Logger, opts RunOptions, comments []domain.Comment) ([]domain.PlanStep, error) {
	dir := opts.OutputDir

	status, err := LoadStatus(dir)
	if err != nil {
		return nil, err
	}
	if status.Locked() {
		return nil, ErrLocked
	}

	if err := validateResumeInputDir(opts.InputDir, opts.FromStep); err != nil {
		return nil, err
	}

	pc := &Context{}
	if opts.InputDir != "" {
		loaded, err := LoadFromDir(opts.InputDir)
		if err != nil {
			return nil, err
		}
		pc = loaded
	} else {
		pc.Comments = comments
	}

	cache, err := embedcache.Open(filepath.Join(dir, "embedcache.sqlite"))
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	params := CurrentParams(cfg)
	plan := Plan(dir, status, PlanOptions{Force: opts.Force, Only: opts.Only}, params)
	plan = restrictFromStep(plan, opts.FromStep)

	status.Plan = plan
	status.Status = StatusRunning
	status.StartTime = nowISO()
	status.RenewLock()
	if err := status.Save(dir); err != nil {
		return nil, err
	}

	for _, step := range plan {
		if !step.Run {
			prog.NotifySkip(step.Step, step.Reason)
			continue
		}
		if err := executeStage(ctx, pc, cfg, client, cache, prog, logger, status, dir, step.Step, params[step.Step]); err != nil {
			status.Status = StatusError
			status.Error = err.Error()
			status.ErrorStackTrace = fmt.Sprintf("%+v", err)
			status.EndTime = nowISO()
			_ = status.Save(dir)
			return plan, err
		}
	}

	status.Finalize()
	if err := status.Save(dir); err != nil {
		return plan, err
	}
	return plan, nil
}

// requiredResumeFiles returns the output files of every stage that runs
// strictly before fromStep — the minimum an --input-dir must contain for
// --from fromStep to have valid upstream state. An unknown fromStep
// yields every stage's output files, which validateResumeInputDir turns
// into a config error anyway.
func requiredResumeFiles(fromStep string) []string {
	var files []string
	for _, stage := range Stages {
		if stage.Step == fromStep {
			break
		}
		files = append(files, stage.OutputFiles...)
	}
	return files
}

// validateResumeInputDir checks, before any stage runs, that every file a
// resume at fromStep depends on is present in inputDir. This is what
// turns a partial --input-dir into a CONFIG-ERROR at plan time instead of
// a stage silently running on zeroed-out Context fields.
func validateResumeInputDir(inputDir, fromStep string) error {
	if fromStep == "" {
		return nil
	}
	for _, f := range requiredResumeFiles(fromStep) {
		if _, err := os.Stat(filepath.Join(inputDir, f)); err != nil {
			return fmt.Errorf("config error: --from %s requires %s in --input-dir %s, not found", fromStep, f, inputDir)
		}
	}
	return nil
}

func restrictFromStep(plan []domain.PlanStep, from string) []domain.PlanStep {
	if from == "" {
		return plan
	}
	started := false
	out := make([]domain.PlanStep, 0, len(plan))
	for _, step := range plan {
		if step.Step == from {
			started = true
		}
		if !started {
			out = append(out, domain.PlanStep{Step: step.Step, Run: false, Reason: "before --from step"})
			continue
		}
		out = append(out, domain.PlanStep{Step: step.Step, Run: true, Reason: step.Reason})
	}
	return out
}

func executeStage(ctx context.Context, pc *Context, cfg *config.Config, client llm.Client, cache *embedcache.Cache, prog progress.Progress, logger *zap.Logger, status *Status, dir, step string, params []domain.ParamValue) error {
	index := stageIndex(step)
	prog.NotifyStep(index, len(Stages), step)
	started := time.Now()

	var usage domain.TokenUsage
	var err error

	switch step {
	case StepExtraction:
		usage, err = RunExtraction(ctx, pc, cfg, client, prog, logging.ForStep(logger, step))
	case StepEmbedding:
		usage, err = RunEmbedding(ctx, pc, cfg, client, cache)
	case StepClustering:
		err = RunClustering(pc, cfg)
	case StepInitialLabelling:
		usage, err = RunInitialLabelling(ctx, pc, cfg, client)
	case StepMergeLabelling:
		usage, err = RunMergeLabelling(ctx, pc, cfg, client)
	case StepOverview:
		usage, err = RunOverview(ctx, pc, cfg, client)
	case StepAggregation:
		var result domain.PipelineResult
		result, err = RunAggregation(pc, cfg, dir)
		if err == nil {
			err = csvio.WriteResult(filepath.Join(dir, fileResult), result)
		}
	}
	if err != nil {
		return fmt.Errorf("pipeline: stage %s: %w", step, err)
	}

	if err := pc.SaveStep(step, dir); err != nil {
		return fmt.Errorf("pipeline: save %s output: %w", step, err)
	}

	status.AddTokenUsage(usage)
	status.CompletedJobs = append(status.CompletedJobs, domain.CompletedJob{
		Step:        step,
		CompletedAt: nowISO(),
		DurationSec: time.Since(started).Seconds(),
		Parameters:  domain.SerializeParameters(paramMap(params)),
		TokenUsage:  usage.Total,
	})
	status.CurrentJob = step
	status.CurrentJobStarted = nowISO()
	status.RenewLock()
	return status.Save(dir)
}

func stageIndex(step string) int {
	for i, s := range Stages {
		if s.Step == step {
			return i + 1
		}
	}
	return 0
}

func paramMap(params []domain.ParamValue) map[string]any {
	out := make(map[string]any, len(params))
	for _, p := range params {
		out[p.Name] = p.Value
	}
	return out
}

// CurrentParams maps every stage's declared parameter names to their
// current concrete value, for planner comparison against the journaled
// previous run.
func CurrentParams(cfg *config.Config) map[string][]domain.ParamValue {
	out := make(map[string][]domain.ParamValue, len(Stages))
	for _, stage := range Stages {
		var values []domain.ParamValue
		switch stage.Step {
		case StepExtraction:
			values = []domain.ParamValue{
				{Name: "model", Value: cfg.Model},
				{Name: "prompt", Value: cfg.Prompts.Extraction},
				{Name: "limit", Value: cfg.Limit},
			}
		case StepEmbedding:
			values = []domain.ParamValue{{Name: "embedding_model", Value: cfg.EmbeddingModel}}
		case StepClustering:
			values = []domain.ParamValue{{Name: "cluster_nums", Value: cfg.ClusterNums}}
		case StepInitialLabelling:
			values = []domain.ParamValue{
				{Name: "model", Value: cfg.Model},
				{Name: "prompt", Value: cfg.Prompts.InitialLabelling},
			}
		case StepMergeLabelling:
			values = []domain.ParamValue{
				{Name: "model", Value: cfg.Model},
				{Name: "prompt", Value: cfg.Prompts.MergeLabelling},
			}
		case StepOverview:
			values = []domain.ParamValue{
				{Name: "model", Value: cfg.Model},
				{Name: "prompt", Value: cfg.Prompts.Overview},
			}
		case StepAggregation:
			values = nil
		}
		out[stage.Step] = values
	}
	return out
}
