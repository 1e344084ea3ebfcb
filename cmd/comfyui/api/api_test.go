package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputsFirstImage(t *testing.T) {
	outputs := ComfyuiOutputs{
		{Type: "text", Filename: "note.txt", Text: "hello"},
		{Type: "output", Filename: "cu-abc.png", Data: []byte("img")},
	}
	require.NotNil(t, outputs.FirstImage())
	assert.Equal(t, "cu-abc.png", outputs.FirstImage().Filename)

	assert.Nil(t, ComfyuiOutputs{{Type: "text"}}.FirstImage())
}

func TestOutputsSave(t *testing.T) {
	outputs := ComfyuiOutputs{
		{Type: "text", Filename: "note.txt", Text: "hello"},
		{Type: "output", Filename: "cu-abc.png", Data: []byte("img-bytes")},
	}

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, outputs.Save(path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("img-bytes"), data)

	// an existing file is only replaced with force
	require.Error(t, outputs.Save(path, false))
	require.NoError(t, outputs.Save(path, true))

	assert.Error(t, ComfyuiOutputs{}.Save(path, true))
}
