package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/llm"
)

// maxSampleSize is how many member arguments are sampled, without
// replacement, to build each cluster's labelling prompt.
const maxSampleSize = 30

type labelResponse struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// RunInitialLabelling asks the LLM for a {label, description} per cluster
// at the finest hierarchy level, sampling up to 30 member arguments per
// cluster. Failures fall back to a numbered placeholder label.
func RunInitialLabelling(ctx context.Context, c *Context, cfg *config.Config, client llm.Client) (domain.TokenUsage, error) {
	finest := finestLevel(c.ClusterResults)
	if finest == 0 {
		c.InitialLabels = map[string]domain.ClusterLabel{}
		return domain.TokenUsage{}, nil
	}

	membersByCluster := groupArgumentsByLevel(c.Arguments, c.ClusterResults, finest)
	ids := sortedClusterIDs(membersByCluster)

	labels := make(map[string]domain.ClusterLabel, len(ids))
	var mu sync.Mutex
	var usage domain.TokenUsage

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(cfg.Workers))

	for _, id := range ids {
		id := id
		members := membersByCluster[id]
		g.Go(func() error {
			label, ok := labelOne(gctx, client, cfg.Prompts.InitialLabelling, sampleTexts(members, maxSampleSize), &usage, &mu)
			result := domain.ClusterLabel{ClusterID: id, Level: finest, Label: label.Label, Description: label.Description}
			if !ok {
				result = placeholderLabel(id, finest)
			}
			mu.Lock()
			labels[id] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.TokenUsage{}, err
	}

	c.InitialLabels = labels
	return usage, nil
}

// RunMergeLabelling builds labels for every level from second-finest up to
// coarsest by asking the LLM to merge each cluster's children's labels.
func RunMergeLabelling(ctx context.Context, c *Context, cfg *config.Config, client llm.Client) (domain.TokenUsage, error) {
	levels := c.ClusterResults.Levels()
	merged := map[string]domain.ClusterLabel{}
	var mu sync.Mutex
	var usage domain.TokenUsage

	childLabelsOf := func(level int, clusterNum int) []domain.ClusterLabel {
		children := map[int]struct{}{}
		assignments := c.ClusterResults[level]
		childAssignments := c.ClusterResults[level+1]
		for i, v := range assignments {
			if v == clusterNum {
				children[childAssignments[i]] = struct{}{}
			}
		}
		nums := make([]int, 0, len(children))
		for n := range children {
			nums = append(nums, n)
		}
		sort.Ints(nums)
		out := make([]domain.ClusterLabel, 0, len(nums))
		for _, n := range nums {
			id := domain.ClusterID(level+1, n)
			if l, ok := c.InitialLabels[id]; ok {
				out = append(out, l)
				continue
			}
			mu.Lock()
			l, ok := merged[id]
			mu.Unlock()
			if ok {
				out = append(out, l)
			}
		}
		return out
	}

	// Each level's clusters merge independently of their siblings, but a
	// level depends entirely on the level below it being finished, so the
	// worker pool is bounded per level and levels run as a strict barrier
	// from finest to coarsest.
	for li := len(levels) - 2; li >= 0; li-- {
		level := levels[li]
		count := c.ClusterResults.CountAt(level)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workerLimit(cfg.Workers))

		for num := 0; num < count; num++ {
			num := num
			g.Go(func() error {
				children := childLabelsOf(level, num)
				id := domain.ClusterID(level, num)
				label, ok := mergeOne(gctx, client, cfg.Prompts.MergeLabelling, children, &usage, &mu)
				result := domain.ClusterLabel{ClusterID: id, Level: level, Label: label.Label, Description: label.Description}
				if !ok {
					result = placeholderLabel(id, level)
				}
				mu.Lock()
				merged[id] = result
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return domain.TokenUsage{}, err
		}
	}

	c.MergedLabels = merged
	return usage, nil
}

func labelOne(ctx context.Context, client llm.Client, prompt string, texts []string, usage *domain.TokenUsage, mu *sync.Mutex) (labelResponse, bool) {
	resp, err := client.Chat(ctx, llm.ChatRequest{System: prompt, User: strings.Join(texts, "\n"), JSONMode: true})
	if err != nil {
		return labelResponse{}, false
	}
	mu.Lock()
	*usage = usage.Add(resp.Usage)
	mu.Unlock()
	return decodeLabel(resp.Content)
}

func mergeOne(ctx context.Context, client llm.Client, prompt string, children []domain.ClusterLabel, usage *domain.TokenUsage, mu *sync.Mutex) (labelResponse, bool) {
	var b strings.Builder
	for _, ch := range children {
		fmt.Fprintf(&b, "- %s: %s\n", ch.Label, ch.Description)
	}
	resp, err := client.Chat(ctx, llm.ChatRequest{System: prompt, User: b.String(), JSONMode: true})
	if err != nil {
		return labelResponse{}, false
	}
	mu.Lock()
	*usage = usage.Add(resp.Usage)
	mu.Unlock()
	return decodeLabel(resp.Content)
}

func decodeLabel(content string) (labelResponse, bool) {
	var lr labelResponse
	if err := decodeJSONObject(content, &lr); err != nil {
		return labelResponse{}, false
	}
	return lr, true
}

// placeholderLabel builds the "グループ<num>" default used whenever a
// cluster's LLM call fails, where <num> is the cluster id's trailing number.
func placeholderLabel(clusterID string, level int) domain.ClusterLabel {
	return domain.ClusterLabel{ClusterID: clusterID, Level: level, Label: fmt.Sprintf("グループ%d", clusterNum(clusterID)), Description: ""}
}

func decodeJSONObject(content string, v any) error {
	return json.Unmarshal([]byte(strings.TrimSpace(content)), v)
}

func finestLevel(results domain.ClusterResults) int {
	levels := results.Levels()
	if len(levels) == 0 {
		return 0
	}
	return levels[len(levels)-1]
}

func groupArgumentsByLevel(args []domain.Argument, results domain.ClusterResults, level int) map[string][]domain.Argument {
	out := map[string][]domain.Argument{}
	labels := results[level]
	for i, a := range args {
		id := domain.ClusterID(level, labels[i])
		out[id] = append(out[id], a)
	}
	return out
}

func sortedClusterIDs(m map[string][]domain.Argument) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sampleTexts returns up to n argument texts, sampled without replacement.
// This sampler is intentionally unseeded: it affects only label wording,
// never cluster structure, so it carries no determinism requirement.
func sampleTexts(args []domain.Argument, n int) []string {
	if len(args) <= n {
		texts := make([]string, len(args))
		for i, a := range args {
			texts[i] = a.Argument
		}
		return texts
	}
	idx := rand.Perm(len(args))[:n]
	texts := make([]string, n)
	for i, j := range idx {
		texts[i] = args[j].Argument
	}
	return texts
}
