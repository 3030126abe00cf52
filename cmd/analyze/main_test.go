package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const series = `{"campaign":{"id":"c-1","name":"Summer sale"},"days":[
 {"date":"2025-08-01","spend":100000,"impressions":10000,"clicks":200,"purchases":1,"revenue":50000},
 {"date":"2025-08-02","spend":100000,"impressions":10000,"clicks":200,"purchases":1,"revenue":50000}]}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunFromStdin(t *testing.T) {
	out, err := execute(t, series, "run")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "c-1", results[0]["campaign_id"])
}

func TestRunArrayWithFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(path, []byte("["+series+`,{"campaign":{"id":"empty"},"days":[]}]`), 0o600))

	out, err := execute(t, "", "run", "--file", path, "--pretty")
	assert.ErrorContains(t, err, "1 of 2 series failed")

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "empty", results[1]["campaign_id"])
	assert.Contains(t, results[1]["error"], "insufficient data")
}

func TestRunRejectsGarbage(t *testing.T) {
	_, err := execute(t, "  ", "run")
	assert.ErrorContains(t, err, "empty input")

	_, err = execute(t, "{not json", "run")
	assert.ErrorContains(t, err, "decoding series")
}

func TestThresholdsCommand(t *testing.T) {
	out, err := execute(t, "", "thresholds")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc)
}

func TestThresholdsFileMissing(t *testing.T) {
	_, err := execute(t, "", "thresholds", "--thresholds", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading thresholds")
}
