package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
)

// RunOverview asks the LLM for a short summary of the coarsest-level
// cluster labels. On failure it leaves the overview empty rather than
// aborting the run.
func RunOverview(ctx context.Context, c *Context, cfg *config.Config, client llm.Client) (domain.TokenUsage, error) {
	levels := c.ClusterResults.Levels()
	if len(levels) == 0 {
		c.Overview = ""
		return domain.TokenUsage{}, nil
	}
	coarsest := levels[0]

	var rows []domain.ClusterLabel
	for _, l := range allLabels(c) {
		if l.Level == coarsest {
			rows = append(rows, l)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ClusterID < rows[j].ClusterID })

	var b strings.Builder
	for _, l := range rows {
		fmt.Fprintf(&b, "- %s: %s\n", l.Label, l.Description)
	}

	resp, err := client.Chat(ctx, llm.ChatRequest{System: cfg.Prompts.Overview, User: b.String()})
	if err != nil {
		c.Overview = ""
		return domain.TokenUsage{}, nil
	}
	c.Overview = strings.TrimSpace(resp.Content)
	return resp.Usage, nil
}
