package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/iksnae/chat-session/testutil"
)

const renderInput = "# Chocolate Recipes\nTry the **fudge** cake\n- melt [butter](https://example.com/butter)\n1. Mix\n"

func TestRenderCommand_JSON(t *testing.T) {
	newTestEnv(t, "", "")

	out, _, err := runCommand(t, renderInput, "render", "--json")
	require.NoError(t, err)

	var segments []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &segments))
	require.NotEmpty(t, segments)
	assert.Equal(t, "header", segments[0]["type"])
	assert.Equal(t, "Chocolate Recipes", segments[0]["text"])

	types := make([]string, 0, len(segments))
	for _, s := range segments {
		types = append(types, s["type"].(string))
	}
	assert.Contains(t, types, "paragraph")
	assert.Contains(t, types, "bullet_group")
	assert.Contains(t, types, "numbered_group")
}

func TestRenderCommand_YAML(t *testing.T) {
	newTestEnv(t, "", "")

	out, _, err := runCommand(t, "plain words", "render", "--yaml")
	require.NoError(t, err)

	var segments []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &segments))
	require.Len(t, segments, 1)
	assert.Equal(t, "paragraph", segments[0]["type"])
}

func TestRenderCommand_Styled(t *testing.T) {
	newTestEnv(t, "", "")
	input := testutil.WriteTempFile(t, "answer.txt", []byte(renderInput))
	sources := testutil.WriteTempFile(t, "sources.json", []byte(`{"sources": [
		{"title": "Chocolate Recipes", "url": "https://example.com/choc"},
		{"title": "Chocolate Recipes", "url": "https://www.example.com/choc/"}
	]}`))

	out, _, err := runCommand(t, "", "render", input, "--sources", sources, "--width", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "Chocolate Recipes")
	assert.Contains(t, out, "fudge")
	assert.Contains(t, out, "https://example.com/choc")
	assert.Contains(t, out, "Sources")
}

func TestRenderCommand_Glamour(t *testing.T) {
	newTestEnv(t, "", "")

	out, _, err := runCommand(t, "**bold** words", "render", "--glamour", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
	assert.Contains(t, out, "words")
}

func TestRenderCommand_Errors(t *testing.T) {
	newTestEnv(t, "", "")

	_, _, err := runCommand(t, "x", "render", "--json", "--yaml")
	assert.Error(t, err, "output modes are mutually exclusive")

	_, _, err = runCommand(t, "", "render", "/does/not/exist.txt")
	assert.Error(t, err)

	bad := testutil.WriteTempFile(t, "bad.json", []byte("not json"))
	_, _, err = runCommand(t, "x", "render", "--sources", bad)
	assert.Error(t, err)
}
