package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// WriteHierarchicalClusters writes hierarchical_clusters.csv: one row per
// argument, with one cluster-level-<L>-id column per hierarchy level in
// ascending level order.
func WriteHierarchicalClusters(path string, args []domain.Argument, levels []int) error {
	header := []string{"arg-id", "argument", "x", "y"}
	for _, l := range levels {
		header = append(header, fmt.Sprintf("cluster-level-%d-id", l))
	}
	return writeCSV(path, header, len(args), func(i int) []string {
		a := args[i]
		row := []string{
			a.ArgID,
			a.Argument,
			strconv.FormatFloat(a.X, 'g', -1, 64),
			strconv.FormatFloat(a.Y, 'g', -1, 64),
		}
		// a.ClusterIDs[0] is always the synthetic root; level L's id is
		// at index L.
		for _, l := range levels {
			if l < len(a.ClusterIDs) {
				row = append(row, a.ClusterIDs[l])
			} else {
				row = append(row, "")
			}
		}
		return row
	})
}

// ReadHierarchicalClusters parses hierarchical_clusters.csv back into
// per-argument records (x, y, and the full cluster membership chain) and
// the ClusterResults the clustering stage produced, by reading the
// header's cluster-level-<L>-id columns rather than assuming a fixed
// count of levels.
func ReadHierarchicalClusters(path string) ([]domain.Argument, domain.ClusterResults, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: read header %s: %w", path, err)
	}
	if len(header) < 4 || header[0] != "arg-id" || header[1] != "argument" || header[2] != "x" || header[3] != "y" {
		return nil, nil, fmt.Errorf("csvio: %s: expected leading header [arg-id argument x y], got %v", path, header)
	}

	var levels []int
	levelCols := make(map[int]int, len(header)-4)
	for i := 4; i < len(header); i++ {
		var level int
		if _, err := fmt.Sscanf(header[i], "cluster-level-%d-id", &level); err != nil {
			return nil, nil, fmt.Errorf("csvio: %s: unexpected column %q", path, header[i])
		}
		levels = append(levels, level)
		levelCols[level] = i
	}
	sort.Ints(levels)

	results := make(domain.ClusterResults, len(levels))
	var args []domain.Argument
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		x, _ := strconv.ParseFloat(row[2], 64)
		y, _ := strconv.ParseFloat(row[3], 64)

		ids := make([]string, len(levels)+1)
		ids[0] = domain.RootClusterID
		for idx, l := range levels {
			id := row[levelCols[l]]
			ids[idx+1] = id
			num, err := parseClusterNum(id)
			if err != nil {
				return nil, nil, fmt.Errorf("csvio: %s: bad cluster id %q: %w", path, id, err)
			}
			results[l] = append(results[l], num)
		}

		args = append(args, domain.Argument{
			ArgID:      row[0],
			Argument:   row[1],
			X:          x,
			Y:          y,
			ClusterIDs: ids,
		})
	}

	return args, results, nil
}

// parseClusterNum extracts the trailing cluster number from a
// "<level>_<num>" id, the inverse of domain.ClusterID.
func parseClusterNum(id string) (int, error) {
	i := strings.LastIndex(id, "_")
	if i < 0 {
		return 0, fmt.Errorf("missing level separator in %q", id)
	}
	return strconv.Atoi(id[i+1:])
}

// WriteInitialLabels writes hierarchical_initial_labels.csv: one row per
// finest-level cluster label.
func WriteInitialLabels(path string, labels []domain.ClusterLabel) error {
	return writeLabelRows(path, labels)
}

func writeLabelRows(path string, labels []domain.ClusterLabel) error {
	header := []string{"level", "id", "label", "description"}
	return writeCSV(path, header, len(labels), func(i int) []string {
		l := labels[i]
		return []string{strconv.Itoa(l.Level), l.ClusterID, l.Label, l.Description}
	})
}

// ReadInitialLabels parses hierarchical_initial_labels.csv.
func ReadInitialLabels(path string) ([]domain.ClusterLabel, error) {
	rows, err := readCSV(path, []string{"level", "id", "label", "description"})
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClusterLabel, len(rows))
	for i, row := range rows {
		level, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("csvio: %s: bad level %q: %w", path, row[0], err)
		}
		out[i] = domain.ClusterLabel{Level: level, ClusterID: row[1], Label: row[2], Description: row[3]}
	}
	return out, nil
}

// MergeLabelRow is one row of hierarchical_merge_labels.csv: a
// ClusterLabel plus the aggregation fields (value, parent) and the
// density triple carried only in this file, not in the JSON result.
type MergeLabelRow struct {
	domain.ClusterLabel
	Value                 int
	Parent                string
	Density               float64
	DensityRank           int
	DensityRankPercentile float64
}

// WriteMergeLabels writes hierarchical_merge_labels.csv with columns
// level, id, label, description, value, parent, density, density_rank,
// density_rank_percentile.
func WriteMergeLabels(path string, rows []MergeLabelRow) error {
	header := []string{"level", "id", "label", "description", "value", "parent", "density", "density_rank", "density_rank_percentile"}
	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			strconv.Itoa(r.Level),
			r.ClusterID,
			r.Label,
			r.Description,
			strconv.Itoa(r.Value),
			r.Parent,
			strconv.FormatFloat(r.Density, 'g', -1, 64),
			strconv.Itoa(r.DensityRank),
			strconv.FormatFloat(r.DensityRankPercentile, 'g', -1, 64),
		}
	})
}

// ReadMergeLabels parses hierarchical_merge_labels.csv, which carries a
// row for every labelled cluster at every level (finest included), plus
// the aggregation and density fields not present in the JSON result.
func ReadMergeLabels(path string) ([]MergeLabelRow, error) {
	rows, err := readCSV(path, []string{"level", "id", "label", "description", "value", "parent", "density", "density_rank", "density_rank_percentile"})
	if err != nil {
		return nil, err
	}
	out := make([]MergeLabelRow, len(rows))
	for i, row := range rows {
		level, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("csvio: %s: bad level %q: %w", path, row[0], err)
		}
		value, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("csvio: %s: bad value %q: %w", path, row[4], err)
		}
		density, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("csvio: %s: bad density %q: %w", path, row[6], err)
		}
		densityRank, err := strconv.Atoi(row[7])
		if err != nil {
			return nil, fmt.Errorf("csvio: %s: bad density_rank %q: %w", path, row[7], err)
		}
		densityPct, err := strconv.ParseFloat(row[8], 64)
		if err != nil {
			return nil, fmt.Errorf("csvio: %s: bad density_rank_percentile %q: %w", path, row[8], err)
		}
		out[i] = MergeLabelRow{
			ClusterLabel:          domain.ClusterLabel{Level: level, ClusterID: row[1], Label: row[2], Description: row[3]},
			Value:                 value,
			Parent:                row[5],
			Density:               density,
			DensityRank:           densityRank,
			DensityRankPercentile: densityPct,
		}
	}
	return out, nil
}

// FinalResultRow is one argument's row of final_result_with_comments.csv.
type FinalResultRow struct {
	CommentID        string
	OriginalComment  string
	ArgID            string
	Argument         string
	CategoryID       string
	Category         string
	X, Y             float64
	AttributeColumns []string          // sorted attribute_<name> column names
	Attributes       map[string]string // values keyed by bare attribute name
}

// WriteFinalResultWithComments writes final_result_with_comments.csv, the
// optional enriched export produced when config.is_pubcom is set.
func WriteFinalResultWithComments(path string, rows []FinalResultRow) error {
	var attrCols []string
	if len(rows) > 0 {
		attrCols = rows[0].AttributeColumns
	}
	header := []string{"comment_id", "original_comment", "arg_id", "argument", "category_id", "category", "x", "y"}
	for _, c := range attrCols {
		header = append(header, "attribute_"+c)
	}
	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		row := []string{
			r.CommentID, r.OriginalComment, r.ArgID, r.Argument, r.CategoryID, r.Category,
			strconv.FormatFloat(r.X, 'g', -1, 64),
			strconv.FormatFloat(r.Y, 'g', -1, 64),
		}
		for _, c := range attrCols {
			row = append(row, r.Attributes[c])
		}
		return row
	})
}
