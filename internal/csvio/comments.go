package csvio

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// ReadComments loads the input comments file named by a run's "input"
// config key. The input loader's exact format is an external collaborator
// this package only needs one concrete shape for: a header row of
// "comment-id,comment-body" with an optional trailing "source-url" column.
func ReadComments(path string) ([]domain.Comment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csvio: read header %s: %w", path, err)
	}

	idCol, bodyCol, urlCol := -1, -1, -1
	for i, h := range header {
		switch h {
		case "comment-id":
			idCol = i
		case "comment-body":
			bodyCol = i
		case "source-url":
			urlCol = i
		}
	}
	if idCol < 0 || bodyCol < 0 {
		return nil, fmt.Errorf("csvio: %s: missing comment-id/comment-body columns", path)
	}

	var comments []domain.Comment
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		c := domain.Comment{ID: row[idCol], Body: row[bodyCol]}
		if urlCol >= 0 && urlCol < len(row) {
			c.SourceURL = row[urlCol]
		}
		comments = append(comments, c)
	}
	return comments, nil
}
