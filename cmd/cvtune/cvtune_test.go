package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDataset(t *testing.T) {
	t.Run("header is skipped", func(t *testing.T) {
		X, y, err := readDataset(strings.NewReader("x1,x2,y\n1,2,3\n4, 5, 6\n"))
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{1, 2}, {4, 5}}, X)
		assert.Equal(t, []float64{3, 6}, y)
	})

	t.Run("comments are ignored", func(t *testing.T) {
		X, y, err := readDataset(strings.NewReader("# generated\n1,2\n3,4\n"))
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{1}, {3}}, X)
		assert.Equal(t, []float64{2, 4}, y)
	})

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", "a,b\n"},
		{"single column", "1\n2\n"},
		{"non numeric body", "1,2\nx,3\n"},
		{"ragged rows", "1,2,3\n4,5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readDataset(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseArgFlags(t *testing.T) {
	args, err := parseArgFlags([]string{"lambda=0.1:10", "intercept=fixed:true"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 10}, args["lambda"].Range)
	assert.Equal(t, true, args["intercept"].Fixed)

	for _, bad := range [][]string{
		{"lambda"},
		{"=1:2"},
		{"lambda=1:2", "lambda=values:1"},
		{"lambda=abc"},
	} {
		_, err := parseArgFlags(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestTuneCommand(t *testing.T) {
	var csv strings.Builder
	csv.WriteString("x,y\n")
	for i := 0; i < 20; i++ {
		v := float64(i) / 4
		fmt.Fprintf(&csv, "%g,%g\n", v, 2*v+1)
	}
	path := filepath.Join(t.TempDir(), "line.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv.String()), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"tune",
		"--data", path,
		"--learner", "ridge",
		"--optimizer", "grid",
		"--arg", "lambda=values:0,1,100",
		"--arg", "intercept=fixed:true",
		"--folds", "4",
		"--json",
		"--log-level", "error",
	})
	t.Cleanup(func() {
		rootCmd.SetOut(os.Stdout)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	var summary resultSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "ridge", summary.Learner)
	assert.Equal(t, "grid", summary.Optimizer)
	assert.Equal(t, 3, summary.Evaluations)
	assert.InDelta(t, 0, summary.BestObjective, 1e-12)
	assert.Equal(t, 0.0, summary.BestArgs["lambda"])
	assert.Equal(t, true, summary.BestArgs["intercept"])
}
