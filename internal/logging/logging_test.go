package logging

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    zerolog.Level
	}{
		{"", false, zerolog.WarnLevel},
		{"info", false, zerolog.InfoLevel},
		{" DEBUG ", false, zerolog.DebugLevel},
		{"error", false, zerolog.ErrorLevel},
		{"chatty", false, zerolog.WarnLevel},
		{"error", true, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.name, tt.verbose), "Level(%q, %v)", tt.name, tt.verbose)
	}
}

func TestNewWritesPlainConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Str("file", "prog.obj").Msg("program loaded")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "program loaded")
	assert.Contains(t, out, "file=prog.obj")
	assert.NotContains(t, out, "\x1b[", "no colour when not writing to a terminal")
}

func TestNewIncludesErrors(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Warn().Err(eris.New("disk on fire")).Msg("save failed")
	assert.Contains(t, buf.String(), "disk on fire")
}
