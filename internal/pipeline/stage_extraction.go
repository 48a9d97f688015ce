package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
	"github.com/takahashim/broadlistening-go/internal/progress"
)

// RunExtraction calls the LLM once per non-empty comment (bounded by
// config.workers) to extract opinions, and appends the resulting
// Arguments and Relations to ctx in comment order. Per-comment failures
// are logged and yield zero arguments; the stage returns an error only
// when the LLM call failed for every non-empty comment.
func RunExtraction(ctx context.Context, c *Context, cfg *config.Config, client llm.Client, prog progress.Progress, logger *zap.Logger) (domain.TokenUsage, error) {
	comments := c.Comments
	if cfg.Limit > 0 && cfg.Limit < len(comments) {
		comments = comments[:cfg.Limit]
	}

	type result struct {
		arguments []domain.Argument
		relations []domain.Relation
		usage     domain.TokenUsage
	}
	results := make([]result, len(comments))

	var processed, failed int
	var lastErr error
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(cfg.Workers))

	for i, comment := range comments {
		if comment.IsEmpty() {
			continue
		}
		i, comment := i, comment
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := client.Chat(gctx, llm.ChatRequest{
				System:   cfg.Prompts.Extraction,
				User:     comment.Body,
				JSONMode: true,
			})
			mu.Lock()
			processed++
			if err != nil {
				failed++
				lastErr = err
			}
			prog.NotifyProgress(StepExtraction, processed, len(comments))
			mu.Unlock()

			if err != nil {
				logger.Warn("extraction failed for comment", zap.String("comment_id", comment.ID), zap.Error(err))
				return nil
			}

			opinions := parseOpinions(resp.Content)
			r := result{usage: resp.Usage}
			for idx, text := range opinions {
				arg := domain.NewArgument(comment, idx, text)
				r.arguments = append(r.arguments, arg)
				r.relations = append(r.relations, domain.NewRelation(arg))
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.TokenUsage{}, err
	}
	if processed > 0 && failed == processed {
		return domain.TokenUsage{}, fmt.Errorf("extraction: every comment failed: %w", lastErr)
	}

	var usage domain.TokenUsage
	for _, r := range results {
		c.Arguments = append(c.Arguments, r.arguments...)
		c.Relations = append(c.Relations, r.relations...)
		usage = usage.Add(r.usage)
	}
	return usage, nil
}

// workerLimit clamps a configured worker count to at least 1.
func workerLimit(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
