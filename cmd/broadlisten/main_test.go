package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
)

func resetFlags() {
	showVersion = false
	force = false
	only = ""
	skipInteraction = false
	fromStep = ""
	inputDir = ""
	verbose = false
}

func TestRunPipelinePrintsVersionAndReturns(t *testing.T) {
	resetFlags()
	defer resetFlags()
	showVersion = true

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	err = runPipeline(&cobra.Command{}, nil)

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	buf.ReadFrom(r)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "broadlisten "+version)
}

func TestRunPipelineRequiresFromAndInputDirTogether(t *testing.T) {
	resetFlags()
	defer resetFlags()
	fromStep = "clustering"
	inputDir = ""

	err := runPipeline(&cobra.Command{}, []string{"config.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from and --input-dir")
}

func TestLoadCommentsReturnsNilWithoutInput(t *testing.T) {
	comments, err := loadComments(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, comments)
}

func TestLoadCommentsReadsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("comment-id,comment-body\n1,hello\n"), 0o644))

	comments, err := loadComments(&config.Config{Input: path})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "hello", comments[0].Body)
}

func TestPrintPlanFormatsRunAndSkip(t *testing.T) {
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	printPlan([]domain.PlanStep{
		{Step: "extraction", Run: true, Reason: "new run"},
		{Step: "embedding", Run: false, Reason: "unchanged"},
	})

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	buf.ReadFrom(r)

	out := buf.String()
	assert.Contains(t, out, "extraction")
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "embedding")
	assert.Contains(t, out, "SKIP")
}
