package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
)

func TestRunOverviewUsesCoarsestLevelOnly(t *testing.T) {
	c := &Context{
		ClusterResults: domain.ClusterResults{
			1: {0, 1},
			2: {0, 1},
		},
		InitialLabels: map[string]domain.ClusterLabel{
			"2_0": {ClusterID: "2_0", Level: 2, Label: "fine0", Description: "fd0"},
			"2_1": {ClusterID: "2_1", Level: 2, Label: "fine1", Description: "fd1"},
		},
		MergedLabels: map[string]domain.ClusterLabel{
			"1_0": {ClusterID: "1_0", Level: 1, Label: "coarse0", Description: "cd0"},
			"1_1": {ClusterID: "1_1", Level: 1, Label: "coarse1", Description: "cd1"},
		},
	}
	cfg := &config.Config{}
	var seenPrompt string
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			seenPrompt = req.User
			return llm.ChatResponse{Content: "  a short summary  ", Usage: domain.TokenUsage{Total: 7}}, nil
		},
	}

	usage, err := RunOverview(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Equal(t, 7, usage.Total)
	assert.Equal(t, "a short summary", c.Overview)
	assert.Contains(t, seenPrompt, "coarse0")
	assert.Contains(t, seenPrompt, "coarse1")
	assert.NotContains(t, seenPrompt, "fine0")
	assert.False(t, client.ChatCalls[0].JSONMode)
}

func TestRunOverviewEmptyOnFailure(t *testing.T) {
	c := &Context{
		ClusterResults: domain.ClusterResults{1: {0}},
		MergedLabels:   map[string]domain.ClusterLabel{},
		InitialLabels:  map[string]domain.ClusterLabel{"1_0": {ClusterID: "1_0", Level: 1, Label: "only"}},
	}
	cfg := &config.Config{}
	client := &llm.FakeClient{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, assert.AnError
		},
	}

	usage, err := RunOverview(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenUsage{}, usage)
	assert.Empty(t, c.Overview)
}

func TestRunOverviewNoClusterResults(t *testing.T) {
	c := &Context{}
	cfg := &config.Config{}
	client := &llm.FakeClient{}

	_, err := RunOverview(context.Background(), c, cfg, client)
	require.NoError(t, err)
	assert.Empty(t, c.Overview)
	assert.Empty(t, client.ChatCalls)
}
