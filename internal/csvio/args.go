// Package csvio reads and writes the hyphenated CSV and JSON files that
// double as the pipeline's resume boundary: each stage's output file is
// both its on-disk artifact and the next run's evidence that the stage
// need not repeat.
package csvio

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// WriteArgs writes args.csv with the mandatory hyphenated header
// "arg-id,argument".
func WriteArgs(path string, args []domain.Argument) error {
	return writeCSV(path, []string{"arg-id", "argument"}, len(args), func(i int) []string {
		a := args[i]
		return []string{a.ArgID, a.Argument}
	})
}

// ReadArgs parses args.csv back into bare Argument stubs (arg_id and text
// only — embedding, coordinates, and cluster membership are filled in by
// later stages).
func ReadArgs(path string) ([]domain.Argument, error) {
	rows, err := readCSV(path, []string{"arg-id", "argument"})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Argument, len(rows))
	for i, row := range rows {
		out[i] = domain.Argument{ArgID: row[0], Argument: row[1]}
	}
	return out, nil
}

// WriteRelations writes relations.csv with header "arg-id,comment-id".
func WriteRelations(path string, relations []domain.Relation) error {
	return writeCSV(path, []string{"arg-id", "comment-id"}, len(relations), func(i int) []string {
		r := relations[i]
		return []string{r.ArgID, r.CommentID}
	})
}

// ReadRelations parses relations.csv.
func ReadRelations(path string) ([]domain.Relation, error) {
	rows, err := readCSV(path, []string{"arg-id", "comment-id"})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Relation, len(rows))
	for i, row := range rows {
		out[i] = domain.Relation{ArgID: row[0], CommentID: row[1]}
	}
	return out, nil
}

// CountUniqueCommentIDs returns the number of distinct comment-id values
// across relations, used to recompute comment_num on a resumed run that
// skips Extraction.
func CountUniqueCommentIDs(relations []domain.Relation) int {
	seen := make(map[string]struct{}, len(relations))
	for _, r := range relations {
		seen[r.CommentID] = struct{}{}
	}
	return len(seen)
}

func writeCSV(path string, header []string, n int, row func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvio: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csvio: write header %s: %w", path, err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("csvio: write row %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

func readCSV(path string, wantHeader []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csvio: read header %s: %w", path, err)
	}
	if len(header) < len(wantHeader) {
		return nil, fmt.Errorf("csvio: %s: expected header %v, got %v", path, wantHeader, header)
	}
	for i, h := range wantHeader {
		if header[i] != h {
			return nil, fmt.Errorf("csvio: %s: expected header %v, got %v", path, wantHeader, header)
		}
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}
