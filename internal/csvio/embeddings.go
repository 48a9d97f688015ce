package csvio

import (
	"encoding/json"
	"fmt"
	"os"
)

// embeddingEntry is one row of embeddings.json.
type embeddingEntry struct {
	ArgID     string    `json:"arg_id"`
	Embedding []float64 `json:"embedding"`
}

type embeddingsFile struct {
	Arguments []embeddingEntry `json:"arguments"`
}

// WriteEmbeddings writes embeddings.json as {"arguments": [{"arg_id":
// ..., "embedding": [...]}]}, in the order argIDs/vectors are given.
func WriteEmbeddings(path string, argIDs []string, vectors [][]float64) error {
	doc := embeddingsFile{Arguments: make([]embeddingEntry, len(argIDs))}
	for i, id := range argIDs {
		doc.Arguments[i] = embeddingEntry{ArgID: id, Embedding: vectors[i]}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("csvio: marshal embeddings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("csvio: write %s: %w", path, err)
	}
	return nil
}

// ReadEmbeddings reads embeddings.json, returning arg ids and vectors in
// file order.
func ReadEmbeddings(path string) (argIDs []string, vectors [][]float64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: read %s: %w", path, err)
	}
	var doc embeddingsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("csvio: parse %s: %w", path, err)
	}
	argIDs = make([]string, len(doc.Arguments))
	vectors = make([][]float64, len(doc.Arguments))
	for i, e := range doc.Arguments {
		argIDs[i] = e.ArgID
		vectors[i] = e.Embedding
	}
	return argIDs, vectors, nil
}
