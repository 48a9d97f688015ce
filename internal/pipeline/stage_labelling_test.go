package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
)

func twoLevelContext() *Context {
	return &Context{
		Arguments: []domain.Argument{
			{ArgID: "a0", Argument: "first"},
			{ArgID: "a1", Argument: "second"},
			{ArgID: "a2", Argument: "third"},
		},
		ClusterResults: domain.ClusterResults{
			1: {0, 0, 1},
			2: {0, 1, 2},
		},
	}
}

func TestRunInitialLabellingSuccess(t *testing.T) {
	c := twoLevelContext()
	cfg := &config.Config{Workers: 1}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: `{"label":"L","description":"D"}`}, nil
		},
	}

	usage, err := RunInitialLabelling(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenUsage{}, usage)
	require.Len(t, c.InitialLabels, 3)
	for id, label := range c.InitialLabels {
		assert.Equal(t, "L", label.Label)
		assert.Equal(t, "D", label.Description)
		assert.Equal(t, 2, label.Level)
		assert.Equal(t, id, label.ClusterID)
	}
}

func TestRunInitialLabellingFallsBackOnFailure(t *testing.T) {
	c := twoLevelContext()
	cfg := &config.Config{Workers: 1}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, assert.AnError
		},
	}

	_, err := RunInitialLabelling(context.Background(), c, cfg, client)
	require.NoError(t, err)
	require.Len(t, c.InitialLabels, 3)
	for id, label := range c.InitialLabels {
		assert.Equal(t, fmt.Sprintf("グループ%d", clusterNum(id)), label.Label)
		assert.Empty(t, label.Description)
	}
}

func TestRunInitialLabellingFallsBackOnMalformedJSON(t *testing.T) {
	c := twoLevelContext()
	cfg := &config.Config{Workers: 1}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "not json"}, nil
		},
	}

	_, err := RunInitialLabelling(context.Background(), c, cfg, client)
	require.NoError(t, err)
	for id, label := range c.InitialLabels {
		assert.Equal(t, fmt.Sprintf("グループ%d", clusterNum(id)), label.Label)
	}
}

func TestRunInitialLabellingEmptyClusterResults(t *testing.T) {
	c := &Context{Arguments: []domain.Argument{{ArgID: "a0", Argument: "x"}}}
	cfg := &config.Config{Workers: 1}
	client := &llm.FakeClient{}

	usage, err := RunInitialLabelling(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenUsage{}, usage)
	assert.Empty(t, c.InitialLabels)
	assert.Empty(t, client.ChatCalls)
}

func TestRunMergeLabellingBuildsEveryCoarserLevel(t *testing.T) {
	c := twoLevelContext()
	c.InitialLabels = map[string]domain.ClusterLabel{
		"2_0": {ClusterID: "2_0", Level: 2, Label: "child0", Description: "d0"},
		"2_1": {ClusterID: "2_1", Level: 2, Label: "child1", Description: "d1"},
		"2_2": {ClusterID: "2_2", Level: 2, Label: "child2", Description: "d2"},
	}
	cfg := &config.Config{Workers: 1}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: `{"label":"merged","description":"m"}`}, nil
		},
	}

	usage, err := RunMergeLabelling(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenUsage{}, usage)
	require.Len(t, c.MergedLabels, 2)
	assert.Equal(t, "merged", c.MergedLabels["1_0"].Label)
	assert.Equal(t, "merged", c.MergedLabels["1_1"].Label)
	assert.Equal(t, 1, c.MergedLabels["1_0"].Level)

	require.Len(t, client.ChatCalls, 2)
	assert.Contains(t, client.ChatCalls[0].User, "child0")
}

func TestRunMergeLabellingFallsBackOnFailure(t *testing.T) {
	c := twoLevelContext()
	c.InitialLabels = map[string]domain.ClusterLabel{
		"2_0": {ClusterID: "2_0", Level: 2, Label: "child0"},
		"2_1": {ClusterID: "2_1", Level: 2, Label: "child1"},
		"2_2": {ClusterID: "2_2", Level: 2, Label: "child2"},
	}
	cfg := &config.Config{Workers: 1}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, assert.AnError
		},
	}

	_, err := RunMergeLabelling(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Equal(t, "グループ0", c.MergedLabels["1_0"].Label)
	assert.Empty(t, c.MergedLabels["1_0"].Description)
}

func TestSampleTextsNeverExceedsN(t *testing.T) {
	args := make([]domain.Argument, 50)
	for i := range args {
		args[i] = domain.Argument{Argument: "text"}
	}
	texts := sampleTexts(args, maxSampleSize)
	assert.Len(t, texts, maxSampleSize)
}

func TestSampleTextsReturnsAllWhenFewerThanN(t *testing.T) {
	args := []domain.Argument{{Argument: "a"}, {Argument: "b"}}
	texts := sampleTexts(args, maxSampleSize)
	assert.ElementsMatch(t, []string{"a", "b"}, texts)
}
