// Package logging configures the zerolog console logger shared by the
// lc3tools commands. Diagnostics go to stderr so that simulator transcripts
// on stdout stay clean.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const timeFormat = "15:04:05"

func consoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: timeFormat}
	writer.FormatFieldValue = func(value interface{}) string {
		str, ok := value.(string)
		if ok && strings.Contains(str, "\\n") && strings.Contains(str, "\\t") {
			// stack traces
			if unquoted, err := strconv.Unquote(str); err == nil {
				return unquoted
			}
		}
		return fmt.Sprintf("%s", value)
	}
	return writer
}

// Level maps a config value to a zerolog level; verbose forces debug.
// Unknown or empty names fall back to warn.
func Level(name string, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	if name == "" {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}

// New returns a console logger writing to out at lvl. Colour is only used
// when out is a terminal.
func New(out io.Writer, lvl zerolog.Level) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		return eris.ToString(err, true)
	}
	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}
	return zerolog.New(consoleWriter(out, noColor)).Level(lvl).With().Timestamp().Logger()
}

// Stderr is New(os.Stderr, lvl).
func Stderr(lvl zerolog.Level) zerolog.Logger {
	return New(os.Stderr, lvl)
}
