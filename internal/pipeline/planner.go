package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// PlanOptions carries the driver's invocation flags into the planner.
type PlanOptions struct {
	Force bool
	Only  string
}

// Plan decides RUN/SKIP for every stage in order, given the prior status,
// the stages whose output directory is dir, and the parameter values
// currently in effect for each stage (as produced by CurrentParams).
func Plan(dir string, status *Status, opts PlanOptions, currentParams map[string][]domain.ParamValue) []domain.PlanStep {
	plan := make([]domain.PlanStep, 0, len(Stages))
	ran := make(map[string]bool, len(Stages))

	for _, stage := range Stages {
		run, reason := decide(dir, stage, status, opts, ran, currentParams[stage.Step])
		plan = append(plan, domain.PlanStep{Step: stage.Step, Run: run, Reason: reason})
		ran[stage.Step] = run
	}
	return plan
}

func decide(dir string, stage StageSpec, status *Status, opts PlanOptions, ran map[string]bool, params []domain.ParamValue) (bool, string) {
	if opts.Force {
		return true, "forced with -f"
	}
	if opts.Only != "" {
		if opts.Only == stage.Step {
			return true, "forced this step with -o"
		}
		return false, "forced another step with -o"
	}

	job, ok := status.LastCompletedJob(stage.Step)
	if !ok {
		return true, "no trace of previous run"
	}

	for _, f := range stage.OutputFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return true, "previous output not found"
		}
	}

	var rerunning []string
	for _, dep := range stage.StepDeps {
		if ran[dep] {
			rerunning = append(rerunning, dep)
		}
	}
	if len(rerunning) > 0 {
		return true, "dependent steps will re-run: " + strings.Join(rerunning, ", ")
	}

	var changed []string
	for _, p := range params {
		recorded, present := job.Parameters[p.Name]
		current := domain.SerializeParameter(p.Value)
		// Compare JSON encodings: a value read back from status.json is a
		// float64 or []any where the current one is an int or []int.
		recordedJSON, _ := json.Marshal(recorded)
		currentJSON, _ := json.Marshal(current)
		if !present || !bytes.Equal(recordedJSON, currentJSON) {
			changed = append(changed, p.Name)
		}
	}
	if len(changed) > 0 {
		return true, "parameters changed: " + strings.Join(changed, ", ")
	}

	return false, "nothing changed"
}
