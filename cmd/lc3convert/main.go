package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lc3tools/internal/cli"
	"lc3tools/pkg/asm"
	"lc3tools/pkg/convert"
)

var errConvert = errors.New("conversion failed")

func main() {
	err := newRootCmd().Execute()
	if errors.Is(err, errConvert) {
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("lc3convert failed")
	}
}

func newRootCmd() *cobra.Command {
	globals := &cli.Globals{}
	cmd := &cobra.Command{
		Use:   "lc3convert <file.bin|file.hex>...",
		Short: "Convert binary or hex listings into LC-3 object files",
		Long: `lc3convert reads text listings with one word per line, either 16 binary
digits (.bin) or 4 hex digits (.hex), and writes an object file beside each
one. The first word is the load address. Text after ';' is ignored.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := globals.Setup()
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range args {
				out, err := convert.ConvertFile(path)
				if err != nil {
					logger.Debug().Err(err).Str("source", path).Msg("conversion failed")
					report(cmd.ErrOrStderr(), path, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "converted %s -> %s\n", path, out)
			}
			if failed > 0 {
				return errConvert
			}
			return nil
		},
	}
	globals.Bind(cmd)
	cmd.AddCommand(cli.VersionCommand("lc3convert"))
	return cmd
}

func report(w io.Writer, path string, err error) {
	var list asm.ErrorList
	if !errors.As(err, &list) {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return
	}
	for _, e := range list {
		fmt.Fprintf(w, "%s:%d: %s\n", path, e.Line, e.Msg)
	}
}
