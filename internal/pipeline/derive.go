package pipeline

import (
	"strconv"
	"strings"

	"github.com/takahashim/broadlistening-go/internal/csvio"
	"github.com/takahashim/broadlistening-go/internal/domain"
)

// valueForCluster counts the arguments whose cluster membership chain
// contains id.
func valueForCluster(args []domain.Argument, id string) int {
	n := 0
	for _, a := range args {
		if a.HasCluster(id) {
			n++
		}
	}
	return n
}

// parentID returns the parent cluster id for cluster num at level: "0" for
// level 1, or the level-1 cluster id of any argument whose level-`level`
// assignment is num, for level > 1.
func parentID(results domain.ClusterResults, level, num int) string {
	if level <= 1 {
		return domain.RootClusterID
	}
	labels := results[level]
	parentLevel := results[level-1]
	for i, v := range labels {
		if v == num {
			return domain.ClusterID(level-1, parentLevel[i])
		}
	}
	return ""
}

// commentIDInt derives the integer comment id used in the final JSON
// result: parse Argument.CommentID as an integer; if that fails, extract
// the integer prefix of ArgID between "A" and "_"; fall back to 0.
func commentIDInt(a domain.Argument) int {
	if v, err := strconv.Atoi(a.CommentID); err == nil {
		return v
	}
	id := a.ArgID
	if strings.HasPrefix(id, "A") {
		id = id[1:]
	}
	if idx := strings.Index(id, "_"); idx >= 0 {
		id = id[:idx]
	}
	if v, err := strconv.Atoi(id); err == nil {
		return v
	}
	return 0
}

// mergeLabelRows builds the hierarchical_merge_labels.csv rows for the
// current context: every label (initial leaf labels plus merged upper
// levels) joined with its value, parent, and density triple.
func mergeLabelRows(c *Context) []csvio.MergeLabelRow {
	all := allLabels(c)
	rows := make([]csvio.MergeLabelRow, 0, len(all))
	for _, l := range all {
		num := clusterNum(l.ClusterID)
		info := c.Density[l.Level][l.ClusterID]
		rows = append(rows, csvio.MergeLabelRow{
			ClusterLabel:          l,
			Value:                 valueForCluster(c.Arguments, l.ClusterID),
			Parent:                parentID(c.ClusterResults, l.Level, num),
			Density:               info.Density,
			DensityRank:           info.DensityRank,
			DensityRankPercentile: info.DensityRankPercentile,
		})
	}
	return rows
}

// allLabels merges InitialLabels (finest level) and MergedLabels (all
// other levels) into one slice, sorted by (level, id) ascending.
func allLabels(c *Context) []domain.ClusterLabel {
	out := make([]domain.ClusterLabel, 0, len(c.InitialLabels)+len(c.MergedLabels))
	for _, l := range c.InitialLabels {
		out = append(out, l)
	}
	for _, l := range c.MergedLabels {
		out = append(out, l)
	}
	sortLabels(out)
	return out
}

func sortLabels(labels []domain.ClusterLabel) {
	for i := 1; i < len(labels); i++ {
		for j := i; j > 0; j-- {
			a, b := labels[j-1], labels[j]
			if a.Level > b.Level || (a.Level == b.Level && a.ClusterID > b.ClusterID) {
				labels[j-1], labels[j] = labels[j], labels[j-1]
			} else {
				break
			}
		}
	}
}

// clusterNum parses the "<level>_<num>" cluster id's trailing number.
func clusterNum(clusterID string) int {
	idx := strings.LastIndex(clusterID, "_")
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(clusterID[idx+1:])
	return n
}
