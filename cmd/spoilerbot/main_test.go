package main

import (
	"bytes"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spoilerBot/internal/infrastructure/config"
)

func TestRootCmd(t *testing.T) {
	root := rootCmd()
	assert.Equal(t, "spoilerbot", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["render"])

	cfgFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, cfgFlag)
	assert.Equal(t, "c", cfgFlag.Shorthand)
}

func TestRenderCmd_WritesGIF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "preview.gif")
	t.Setenv("TMPDIR", t.TempDir())

	root := rootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"render", "--text", "Snape kills Dumbledore", "--out", out})
	configPath = ""
	require.NoError(t, root.Execute())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Contains(t, stdout.String(), "(1 lines)")
}

func TestRenderCmd_RejectsBadMaxLines(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"render", "--text", "x", "--max-lines", "0", "--out", filepath.Join(t.TempDir(), "x.gif")})
	configPath = ""

	err := root.Execute()
	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunCmd_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: x\nbackend: discord\ninclude: [a]\nexclude: [b]\n"), 0o600))

	root := rootCmd()
	root.SetArgs([]string{"run", "--config", path})

	err := root.Execute()
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "include", cfgErr.Field)
}
