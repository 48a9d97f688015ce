package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/csvio"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
	"github.com/takahashim/broadlistening-go/internal/progress"
)

func fakeDriverClient() *llm.FakeClient {
	return &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			if req.JSONMode {
				// Serves extraction (opinions), initial/merge labelling
				// (label+description) from one fixed shape.
				return llm.ChatResponse{Content: `{"label":"L","description":"D","opinions":["opinion text"]}`}, nil
			}
			return llm.ChatResponse{Content: "overview text"}, nil
		},
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float64, error) {
			out := make([][]float64, len(texts))
			for i := range texts {
				out[i] = []float64{float64(i), float64(i) * 2, float64(i) * 3}
			}
			return out, nil
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Model:          "test-model",
		EmbeddingModel: "test-embed",
		ClusterNums:    []int{1, 2},
		Workers:        1,
	}
	comments := []domain.Comment{
		{ID: "1", Body: "first comment"},
		{ID: "2", Body: "second comment"},
		{ID: "3", Body: "third comment"},
		{ID: "4", Body: "fourth comment"},
	}
	client := fakeDriverClient()

	plan, err := RunWithComments(context.Background(), cfg, client, progress.NoOp{}, zap.NewNop(), RunOptions{OutputDir: dir}, comments)
	require.NoError(t, err)
	require.Len(t, plan, len(Stages))
	for _, step := range plan {
		assert.True(t, step.Run)
	}

	for _, f := range []string{fileArgs, fileRelations, fileEmbeddings, fileClusters, fileInitialLabels, fileMergeLabels, fileOverview, fileResult, "status.json"} {
		_, statErr := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, statErr, "expected %s to exist", f)
	}

	status, err := LoadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Empty(t, status.CompletedJobs)
	assert.Len(t, status.PreviouslyCompletedJobs, len(Stages))

	data, err := os.ReadFile(filepath.Join(dir, fileResult))
	require.NoError(t, err)
	var result domain.PipelineResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 4, result.CommentNum)
	assert.NotEmpty(t, result.Clusters)
}

func TestRunReturnsErrLockedWhenLeaseActive(t *testing.T) {
	dir := t.TempDir()
	status := &Status{Status: StatusRunning}
	status.RenewLock()
	require.NoError(t, status.Save(dir))

	cfg := &config.Config{ClusterNums: []int{1, 2}}
	client := fakeDriverClient()

	_, err := RunWithComments(context.Background(), cfg, client, progress.NoOp{}, zap.NewNop(), RunOptions{OutputDir: dir}, nil)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestRunPropagatesStageErrorAndMarksStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{ClusterNums: []int{1, 2}, Workers: 1}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, assert.AnError
		},
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float64, error) {
			return nil, assert.AnError
		},
	}
	comments := []domain.Comment{{ID: "1", Body: "x"}, {ID: "2", Body: "y"}}

	_, err := RunWithComments(context.Background(), cfg, client, progress.NoOp{}, zap.NewNop(), RunOptions{OutputDir: dir}, comments)
	require.Error(t, err)

	status, loadErr := LoadStatus(dir)
	require.NoError(t, loadErr)
	assert.Equal(t, StatusError, status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestCurrentParamsMatchesStageSpecParams(t *testing.T) {
	cfg := &config.Config{
		Model:          "m",
		EmbeddingModel: "e",
		ClusterNums:    []int{1, 2},
		Limit:          10,
		Prompts: config.PromptSet{
			Extraction:       "ext",
			InitialLabelling: "init",
			MergeLabelling:   "merge",
			Overview:         "ov",
		},
	}
	params := CurrentParams(cfg)
	for _, stage := range Stages {
		names := make(map[string]bool, len(params[stage.Step]))
		for _, p := range params[stage.Step] {
			names[p.Name] = true
		}
		for _, want := range stage.Params() {
			assert.True(t, names[want], "stage %s missing param %s", stage.Step, want)
		}
	}
}

func TestRestrictFromStepMarksEarlierStepsSkipped(t *testing.T) {
	plan := []domain.PlanStep{
		{Step: StepExtraction, Run: true, Reason: "new"},
		{Step: StepEmbedding, Run: true, Reason: "new"},
		{Step: StepClustering, Run: true, Reason: "new"},
	}
	out := restrictFromStep(plan, StepEmbedding)
	require.Len(t, out, 3)
	assert.False(t, out[0].Run)
	assert.Equal(t, "before --from step", out[0].Reason)
	assert.True(t, out[1].Run)
	assert.True(t, out[2].Run)
}

func TestRunResumesFromClusteringWithMinimalInputDir(t *testing.T) {
	inputDir := t.TempDir()
	args := []domain.Argument{
		{ArgID: "A1_0", Argument: "first"},
		{ArgID: "A2_0", Argument: "second"},
		{ArgID: "A3_0", Argument: "third"},
		{ArgID: "A4_0", Argument: "fourth"},
	}
	relations := []domain.Relation{
		{ArgID: "A1_0", CommentID: "1"},
		{ArgID: "A2_0", CommentID: "2"},
		{ArgID: "A3_0", CommentID: "3"},
		{ArgID: "A4_0", CommentID: "4"},
	}
	require.NoError(t, csvio.WriteArgs(filepath.Join(inputDir, "args.csv"), args))
	require.NoError(t, csvio.WriteRelations(filepath.Join(inputDir, "relations.csv"), relations))
	ids := make([]string, len(args))
	vecs := make([][]float64, len(args))
	for i, a := range args {
		ids[i] = a.ArgID
		vecs[i] = []float64{float64(i), float64(i) * 2, float64(i) * 3}
	}
	require.NoError(t, csvio.WriteEmbeddings(filepath.Join(inputDir, "embeddings.json"), ids, vecs))

	outputDir := t.TempDir()
	cfg := &config.Config{ClusterNums: []int{1, 2}, Workers: 1}
	client := fakeDriverClient()

	plan, err := Run(context.Background(), cfg, client, progress.NoOp{}, zap.NewNop(), RunOptions{
		FromStep:  StepClustering,
		InputDir:  inputDir,
		OutputDir: outputDir,
	})
	require.NoError(t, err)

	for _, step := range plan {
		if step.Step == StepExtraction || step.Step == StepEmbedding {
			assert.False(t, step.Run, "%s should be skipped before --from", step.Step)
		} else {
			assert.True(t, step.Run, "%s should run from clustering onward", step.Step)
		}
	}

	data, err := os.ReadFile(filepath.Join(outputDir, fileResult))
	require.NoError(t, err)
	var result domain.PipelineResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 4, result.CommentNum)
	assert.Empty(t, result.Comments)
}

func TestRunRejectsResumeFromOverviewWithMissingClusterFiles(t *testing.T) {
	inputDir := t.TempDir() // args.csv/relations.csv/embeddings.json present, clustering+labelling outputs absent
	args := []domain.Argument{{ArgID: "A1_0", Argument: "first"}}
	require.NoError(t, csvio.WriteArgs(filepath.Join(inputDir, "args.csv"), args))
	require.NoError(t, csvio.WriteRelations(filepath.Join(inputDir, "relations.csv"), []domain.Relation{{ArgID: "A1_0", CommentID: "1"}}))
	require.NoError(t, csvio.WriteEmbeddings(filepath.Join(inputDir, "embeddings.json"), []string{"A1_0"}, [][]float64{{1, 2}}))

	outputDir := t.TempDir()
	cfg := &config.Config{ClusterNums: []int{1, 2}, Workers: 1}
	client := fakeDriverClient()

	_, err := Run(context.Background(), cfg, client, progress.NoOp{}, zap.NewNop(), RunOptions{
		FromStep:  StepOverview,
		InputDir:  inputDir,
		OutputDir: outputDir,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
	assert.Contains(t, err.Error(), fileClusters)

	_, statErr := os.Stat(filepath.Join(outputDir, "status.json"))
	assert.True(t, os.IsNotExist(statErr), "no stage should have started, so no status.json should exist")
}

func TestRunResumesFromOverviewWithFullInputDir(t *testing.T) {
	inputDir := t.TempDir()
	c := buildTestContext()
	require.NoError(t, csvio.WriteArgs(filepath.Join(inputDir, fileArgs), c.Arguments))
	relations := []domain.Relation{
		{ArgID: "A1_0", CommentID: "1"},
		{ArgID: "A2_0", CommentID: "2"},
	}
	require.NoError(t, csvio.WriteRelations(filepath.Join(inputDir, fileRelations), relations))
	require.NoError(t, csvio.WriteEmbeddings(filepath.Join(inputDir, fileEmbeddings), []string{"A1_0", "A2_0"}, [][]float64{{1, 2}, {3, 4}}))
	require.NoError(t, c.SaveStep(StepClustering, inputDir))
	require.NoError(t, c.SaveStep(StepInitialLabelling, inputDir))
	require.NoError(t, c.SaveStep(StepMergeLabelling, inputDir))

	outputDir := t.TempDir()
	cfg := &config.Config{ClusterNums: []int{1, 2}, Workers: 1}
	client := fakeDriverClient()

	plan, err := Run(context.Background(), cfg, client, progress.NoOp{}, zap.NewNop(), RunOptions{
		FromStep:  StepOverview,
		InputDir:  inputDir,
		OutputDir: outputDir,
	})
	require.NoError(t, err)

	for _, step := range plan {
		switch step.Step {
		case StepOverview, StepAggregation:
			assert.True(t, step.Run, "%s should run from overview onward", step.Step)
		default:
			assert.False(t, step.Run, "%s should be skipped before --from", step.Step)
		}
	}

	data, err := os.ReadFile(filepath.Join(outputDir, fileResult))
	require.NoError(t, err)
	var result domain.PipelineResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.NotEmpty(t, result.Clusters, "a resume at overview must not silently produce an empty hierarchy")
	assert.NotEmpty(t, result.Overview)
}

func TestRestrictFromStepNoOpWhenEmpty(t *testing.T) {
	plan := []domain.PlanStep{{Step: StepExtraction, Run: false, Reason: "up to date"}}
	out := restrictFromStep(plan, "")
	assert.Equal(t, plan, out)
}
