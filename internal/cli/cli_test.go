package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lc3tools/pkg/buildinfo"
	"lc3tools/pkg/config"
)

func TestVersionCommand(t *testing.T) {
	root := &cobra.Command{Use: "lc3as"}
	root.AddCommand(VersionCommand("lc3as"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, buildinfo.Summary("lc3as"), out.String())
}

func TestGlobalsSetup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("log_level: info\noptions:\n  flush: false\n"), 0644))

	g := &Globals{Dir: dir}
	root := &cobra.Command{Use: "lc3sim", RunE: func(*cobra.Command, []string) error { return nil }}
	g.Bind(root)
	root.SetArgs([]string{"--verbose"})
	require.NoError(t, root.Execute())
	assert.True(t, g.Verbose)

	cfg, _, err := g.Setup()
	require.NoError(t, err)
	assert.False(t, cfg.Options.Flush)
}

func TestGlobalsSetupMissingExplicitConfig(t *testing.T) {
	g := &Globals{Dir: t.TempDir(), ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}
	_, _, err := g.Setup()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not found"))
}
