package pipeline

// Stage names, in pipeline order.
const (
	StepExtraction       = "extraction"
	StepEmbedding        = "embedding"
	StepClustering       = "clustering"
	StepInitialLabelling = "initial_labelling"
	StepMergeLabelling   = "merge_labelling"
	StepOverview         = "overview"
	StepAggregation      = "aggregation"
)

// StageSpec is the static description of one pipeline stage: its output
// files and what it depends on.
type StageSpec struct {
	Step         string
	OutputFiles  []string
	ParamDeps    []string
	StepDeps     []string
	UseLLM       bool
}

// Stages is the pipeline's static spec, in execution order. use_llm
// stages automatically carry "prompt" and "model" as extra parameter
// dependencies; Params() below applies that rule rather than listing it
// per entry.
var Stages = []StageSpec{
	{
		Step:        StepExtraction,
		OutputFiles: []string{fileArgs, fileRelations},
		ParamDeps:   []string{"limit"},
		UseLLM:      true,
	},
	{
		Step:        StepEmbedding,
		OutputFiles: []string{fileEmbeddings},
		ParamDeps:   []string{"embedding_model"},
		StepDeps:    []string{StepExtraction},
	},
	{
		Step:        StepClustering,
		OutputFiles: []string{fileClusters},
		ParamDeps:   []string{"cluster_nums"},
		StepDeps:    []string{StepEmbedding},
	},
	{
		Step:        StepInitialLabelling,
		OutputFiles: []string{fileInitialLabels},
		StepDeps:    []string{StepClustering},
		UseLLM:      true,
	},
	{
		Step:        StepMergeLabelling,
		OutputFiles: []string{fileMergeLabels},
		StepDeps:    []string{StepInitialLabelling},
		UseLLM:      true,
	},
	{
		Step:        StepOverview,
		OutputFiles: []string{fileOverview},
		StepDeps:    []string{StepMergeLabelling},
		UseLLM:      true,
	},
	{
		Step:        StepAggregation,
		OutputFiles: []string{fileResult},
		StepDeps:    []string{StepOverview},
	},
}

// Params returns the full set of parameter dependency names for a stage,
// folding in "prompt" and "model" for use_llm stages.
func (s StageSpec) Params() []string {
	params := append([]string{}, s.ParamDeps...)
	if s.UseLLM {
		params = append(params, "prompt", "model")
	}
	return params
}
