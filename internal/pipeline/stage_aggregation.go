package pipeline

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/csvio"
	"github.com/takahashim/broadlistening-go/internal/domain"
)

// RunAggregation builds the final PipelineResult from everything the
// earlier stages accumulated on ctx, and — when the run is configured for
// a public-comment export — writes the flattened final_result_with_comments
// CSV alongside it.
func RunAggregation(c *Context, cfg *config.Config, outputDir string) (domain.PipelineResult, error) {
	labelByID := map[string]domain.ClusterLabel{domain.RootClusterID: domain.RootLabel()}
	for _, l := range allLabels(c) {
		labelByID[l.ClusterID] = l
	}

	result := domain.PipelineResult{
		Arguments:    buildResultArguments(c, cfg),
		Clusters:     buildResultClusters(c),
		Comments:     buildCommentEchoes(c),
		PropertyMap:  buildPropertyMap(c, cfg),
		Translations: map[string]string{},
		Overview:     c.Overview,
		Config:       configDict(cfg),
		CommentNum:   commentNum(c),
	}

	if cfg.IsPubcom && outputDir != "" {
		rows := buildFinalResultRows(c, cfg, labelByID)
		if err := csvio.WriteFinalResultWithComments(filepath.Join(outputDir, fileFinalWithCmts), rows); err != nil {
			return domain.PipelineResult{}, fmt.Errorf("pipeline: write final result with comments: %w", err)
		}
	}

	return result, nil
}

func buildResultArguments(c *Context, cfg *config.Config) []domain.ResultArgument {
	out := make([]domain.ResultArgument, 0, len(c.Arguments))
	for _, a := range c.Arguments {
		ra := domain.ResultArgument{
			ArgID:      a.ArgID,
			Argument:   a.Argument,
			CommentID:  commentIDInt(a),
			X:          a.X,
			Y:          a.Y,
			P:          0,
			ClusterIDs: a.ClusterIDs,
			Attributes: a.Attributes,
		}
		if cfg.EnableSourceLink {
			ra.URL = a.URL
		}
		out = append(out, ra)
	}
	return out
}

func buildResultClusters(c *Context) []domain.ResultCluster {
	all := allLabels(c)
	out := make([]domain.ResultCluster, 0, len(all)+1)
	out = append(out, domain.ResultCluster{
		Level:    0,
		ID:       domain.RootClusterID,
		Label:    domain.RootLabel().Label,
		Takeaway: domain.RootLabel().Description,
		Value:    len(c.Arguments),
		Parent:   "",
	})
	for _, l := range all {
		num := clusterNum(l.ClusterID)
		var pct *float64
		if info, ok := c.Density[l.Level][l.ClusterID]; ok {
			v := info.DensityRankPercentile
			pct = &v
		}
		out = append(out, domain.ResultCluster{
			Level:                 l.Level,
			ID:                    l.ClusterID,
			Label:                 l.Label,
			Takeaway:              l.Description,
			Value:                 valueForCluster(c.Arguments, l.ClusterID),
			Parent:                parentID(c.ClusterResults, l.Level, num),
			DensityRankPercentile: pct,
		})
	}
	return out
}

func buildCommentEchoes(c *Context) map[string]domain.CommentEcho {
	out := map[string]domain.CommentEcho{}
	if len(c.Comments) == 0 {
		return out
	}
	hasArgument := map[string]bool{}
	for _, r := range c.Relations {
		hasArgument[r.CommentID] = true
	}
	for _, cm := range c.Comments {
		if !hasArgument[cm.ID] {
			continue
		}
		id := cm.ID
		if n, err := strconv.Atoi(cm.ID); err == nil {
			id = strconv.Itoa(n)
		}
		out[id] = domain.CommentEcho{Comment: cm.Body}
	}
	return out
}

func buildPropertyMap(c *Context, cfg *config.Config) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, col := range cfg.PropertyColumns() {
		column := map[string]any{}
		for _, a := range c.Arguments {
			if v, ok := a.Properties[col]; ok {
				column[a.ArgID] = v
			}
		}
		out[col] = column
	}
	return out
}

func configDict(cfg *config.Config) map[string]any {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return map[string]any{}
	}
	var dict map[string]any
	if err := json.Unmarshal(encoded, &dict); err != nil {
		return map[string]any{}
	}
	delete(dict, "api_key")
	delete(dict, "api_base_url")
	return dict
}

func commentNum(c *Context) int {
	if len(c.Comments) > 0 {
		return len(c.Comments)
	}
	return csvio.CountUniqueCommentIDs(c.Relations)
}

func buildFinalResultRows(c *Context, cfg *config.Config, labelByID map[string]domain.ClusterLabel) []csvio.FinalResultRow {
	bodyByCommentID := map[string]string{}
	for _, cm := range c.Comments {
		bodyByCommentID[cm.ID] = cm.Body
	}

	cols := cfg.PropertyColumns()
	rows := make([]csvio.FinalResultRow, 0, len(c.Arguments))
	for _, a := range c.Arguments {
		categoryID := levelOneClusterID(a.ClusterIDs)
		label := labelByID[categoryID]

		attrs := make(map[string]string, len(cols))
		for _, col := range cols {
			if v, ok := a.Properties[col]; ok {
				attrs[col] = fmt.Sprintf("%v", v)
			}
		}

		rows = append(rows, csvio.FinalResultRow{
			CommentID:        a.CommentID,
			OriginalComment:  bodyByCommentID[a.CommentID],
			ArgID:            a.ArgID,
			Argument:         a.Argument,
			CategoryID:       categoryID,
			Category:         label.Label,
			X:                a.X,
			Y:                a.Y,
			AttributeColumns: cols,
			Attributes:       attrs,
		})
	}
	return rows
}

// levelOneClusterID finds the level-1 (coarsest) entry in a membership
// chain built by ClusterResults.ClusterIDsFor.
func levelOneClusterID(ids []string) string {
	for _, id := range ids {
		if strings.HasPrefix(id, "1_") {
			return id
		}
	}
	return domain.RootClusterID
}
