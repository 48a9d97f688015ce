// Package pipeline implements the seven-stage batch pipeline: a shared
// context, a status journal that doubles as a lock and provenance log, a
// static stage spec, a RUN/SKIP planner, the stage implementations
// themselves, and the top-level driver that ties them together.
package pipeline

import (
	"path/filepath"

	"github.com/takahashim/broadlistening-go/internal/csvio"
	"github.com/takahashim/broadlistening-go/internal/domain"
)

// Context carries every mutable artifact across stage boundaries. Stage
// code may only mutate the fields it is specified to produce.
type Context struct {
	Comments  []domain.Comment
	Arguments []domain.Argument
	Relations []domain.Relation

	ClusterResults domain.ClusterResults
	InitialLabels  map[string]domain.ClusterLabel
	MergedLabels   map[string]domain.ClusterLabel
	Density        map[int]map[string]domain.DensityInfo // level -> cluster id -> info

	Overview string

	TokenUsage domain.TokenUsage
}

const (
	fileArgs            = "args.csv"
	fileRelations       = "relations.csv"
	fileEmbeddings      = "embeddings.json"
	fileClusters        = "hierarchical_clusters.csv"
	fileInitialLabels   = "hierarchical_initial_labels.csv"
	fileMergeLabels     = "hierarchical_merge_labels.csv"
	fileOverview        = "hierarchical_overview.txt"
	fileResult          = "hierarchical_result.json"
	fileFinalWithCmts   = "final_result_with_comments.csv"
)

// SaveStep persists the artifact(s) produced by step into dir.
func (c *Context) SaveStep(step string, dir string) error {
	switch step {
	case StepExtraction:
		if err := csvio.WriteArgs(filepath.Join(dir, fileArgs), c.Arguments); err != nil {
			return err
		}
		return csvio.WriteRelations(filepath.Join(dir, fileRelations), c.Relations)
	case StepEmbedding:
		ids := make([]string, len(c.Arguments))
		vecs := make([][]float64, len(c.Arguments))
		for i, a := range c.Arguments {
			ids[i] = a.ArgID
			vecs[i] = a.Embedding
		}
		return csvio.WriteEmbeddings(filepath.Join(dir, fileEmbeddings), ids, vecs)
	case StepClustering:
		return csvio.WriteHierarchicalClusters(filepath.Join(dir, fileClusters), c.Arguments, c.ClusterResults.Levels())
	case StepInitialLabelling:
		return csvio.WriteInitialLabels(filepath.Join(dir, fileInitialLabels), labelSlice(c.InitialLabels))
	case StepMergeLabelling:
		return csvio.WriteMergeLabels(filepath.Join(dir, fileMergeLabels), mergeLabelRows(c))
	case StepOverview:
		return csvio.WriteOverview(filepath.Join(dir, fileOverview), c.Overview)
	case StepAggregation:
		// Aggregation's own result write happens in the stage itself, since
		// it needs the Config to build the PipelineResult.
		return nil
	}
	return nil
}

func labelSlice(m map[string]domain.ClusterLabel) []domain.ClusterLabel {
	out := make([]domain.ClusterLabel, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	return out
}

// LoadFromDir populates whichever fields have artifacts present in dir,
// leaving the rest at their zero value. This is what lets --from STEP
// --input-dir DIR resume from any boundary.
func LoadFromDir(dir string) (*Context, error) {
	ctx := &Context{}

	if args, err := csvio.ReadArgs(filepath.Join(dir, fileArgs)); err == nil {
		ctx.Arguments = args
	}
	if relations, err := csvio.ReadRelations(filepath.Join(dir, fileRelations)); err == nil {
		ctx.Relations = relations
		byArg := make(map[string]string, len(relations))
		for _, r := range relations {
			byArg[r.ArgID] = r.CommentID
		}
		for i := range ctx.Arguments {
			ctx.Arguments[i].CommentID = byArg[ctx.Arguments[i].ArgID]
		}
	}
	if ids, vecs, err := csvio.ReadEmbeddings(filepath.Join(dir, fileEmbeddings)); err == nil {
		byID := make(map[string][]float64, len(ids))
		for i, id := range ids {
			byID[id] = vecs[i]
		}
		for i := range ctx.Arguments {
			ctx.Arguments[i].Embedding = byID[ctx.Arguments[i].ArgID]
		}
	}
	if clusterArgs, results, err := csvio.ReadHierarchicalClusters(filepath.Join(dir, fileClusters)); err == nil {
		ctx.ClusterResults = results
		if len(ctx.Arguments) == 0 {
			ctx.Arguments = clusterArgs
		} else {
			byID := make(map[string]domain.Argument, len(clusterArgs))
			for _, a := range clusterArgs {
				byID[a.ArgID] = a
			}
			for i := range ctx.Arguments {
				if a, ok := byID[ctx.Arguments[i].ArgID]; ok {
					ctx.Arguments[i].X = a.X
					ctx.Arguments[i].Y = a.Y
					ctx.Arguments[i].ClusterIDs = a.ClusterIDs
				}
			}
		}
	}
	if labels, err := csvio.ReadInitialLabels(filepath.Join(dir, fileInitialLabels)); err == nil {
		ctx.InitialLabels = make(map[string]domain.ClusterLabel, len(labels))
		for _, l := range labels {
			ctx.InitialLabels[l.ClusterID] = l
		}
	}
	if rows, err := csvio.ReadMergeLabels(filepath.Join(dir, fileMergeLabels)); err == nil {
		ctx.MergedLabels = map[string]domain.ClusterLabel{}
		ctx.Density = map[int]map[string]domain.DensityInfo{}
		for _, r := range rows {
			// hierarchical_merge_labels.csv carries every level including
			// the finest, which hierarchical_initial_labels.csv already
			// supplied; keep that split so a resumed merge_labelling run
			// still finds finest-level labels in InitialLabels only.
			if _, ok := ctx.InitialLabels[r.ClusterID]; !ok {
				ctx.MergedLabels[r.ClusterID] = r.ClusterLabel
			}
			if ctx.Density[r.Level] == nil {
				ctx.Density[r.Level] = map[string]domain.DensityInfo{}
			}
			ctx.Density[r.Level][r.ClusterID] = domain.DensityInfo{
				Density:               r.Density,
				DensityRank:           r.DensityRank,
				DensityRankPercentile: r.DensityRankPercentile,
			}
		}
	}
	if overview, err := csvio.ReadOverview(filepath.Join(dir, fileOverview)); err == nil {
		ctx.Overview = overview
	}

	return ctx, nil
}
