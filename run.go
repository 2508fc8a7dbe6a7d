package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lc3tools/internal/cli"
	"lc3tools/pkg/asm"
	"lc3tools/pkg/convert"
	"lc3tools/pkg/cpu"
	"lc3tools/pkg/isa"
	"lc3tools/pkg/lc3os"
	"lc3tools/pkg/obj"
	"lc3tools/pkg/utils"
)

// bootBudget bounds the OS start-up code.
const bootBudget = 1 << 20

var errBudget = errors.New("instruction budget exhausted")

type runOptions struct {
	input     string
	inputFile string
	budget    int
	registers bool
}

func newRootCmd() *cobra.Command {
	globals := &cli.Globals{}
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "lc3tools <program.asm|program.obj|program.bin|program.hex>",
		Short: "Run an LC-3 program to completion",
		Long: `lc3tools assembles or converts the program if needed, boots the built-in
LC-3 OS, runs the program from its origin until it halts, and prints its
display output. Keyboard input comes from --input or --input-file. The
exit status is 3 when the program reads past the end of its input.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := globals.Setup()
			if err != nil {
				return err
			}
			osImage, err := cfg.LoadOS()
			if err != nil {
				return eris.Wrap(err, "failed to read LC-3 OS code")
			}
			if osImage == nil {
				if osImage, err = lc3os.Builtin(); err != nil {
					return err
				}
			}
			input := []byte(opts.input)
			if opts.inputFile != "" {
				if input, err = os.ReadFile(opts.inputFile); err != nil {
					return eris.Wrapf(err, "failed to read %s", opts.inputFile)
				}
			}
			img, err := loadProgram(args[0])
			if err != nil {
				return err
			}
			c, err := runProgram(img, osImage, input, cmd.OutOrStdout(), opts.budget, logger)
			if opts.registers && c != nil {
				fmt.Fprint(cmd.OutOrStdout(), registerSummary(c))
			}
			return err
		},
	}
	globals.Bind(cmd)
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "keyboard input for the program")
	cmd.Flags().StringVarP(&opts.inputFile, "input-file", "f", "", "read keyboard input from a file")
	cmd.Flags().IntVarP(&opts.budget, "max-steps", "n", 0, "stop after this many instructions (0 for no limit)")
	cmd.Flags().BoolVarP(&opts.registers, "registers", "r", false, "print the registers when the program stops")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")
	cmd.AddCommand(cli.VersionCommand("lc3tools"))
	return cmd
}

// loadProgram reads an object file, or builds one from assembly source or
// a binary/hex listing.
func loadProgram(path string) (obj.Image, error) {
	switch {
	case utils.HasExt(path, ".asm"):
		src, err := os.ReadFile(path)
		if err != nil {
			return obj.Image{}, eris.Wrapf(err, "failed to read %s", path)
		}
		prog, err := asm.Assemble(string(src))
		if err != nil {
			return obj.Image{}, eris.Wrapf(err, "failed to assemble %s", path)
		}
		return prog.Image(), nil
	case utils.HasExt(path, ".bin"), utils.HasExt(path, ".hex"):
		f, err := convert.FormatFor(path)
		if err != nil {
			return obj.Image{}, err
		}
		in, err := os.Open(path)
		if err != nil {
			return obj.Image{}, eris.Wrapf(err, "failed to open %s", path)
		}
		defer in.Close()
		img, err := convert.Convert(in, f)
		if err != nil {
			return obj.Image{}, eris.Wrapf(err, "failed to convert %s", path)
		}
		return img, nil
	}
	return obj.ReadFile(path)
}

// runProgram boots sys quietly, then runs img from its origin with input
// on the keyboard and the display on out. A budget of zero means no limit.
func runProgram(img obj.Image, sys *lc3os.OS, input []byte, out io.Writer, budget int, logger zerolog.Logger) (*cpu.CPU, error) {
	c := cpu.NewCPU()
	c.RandomDevice = false
	c.Output = io.Discard
	c.Keyboard = cpu.NewBytesKeyboard(nil)
	c.Load(sys.Image)
	c.PC = lc3os.StartAddr
	if stop := c.RunFor(bootBudget); stop != cpu.StopHalted {
		return nil, eris.Errorf("the LC-3 OS did not boot: %v", stop)
	}

	c.Load(img)
	c.PC = img.Origin
	c.Output = out
	kbd := cpu.NewBytesKeyboard(input)
	c.Keyboard = kbd

	var stop cpu.Stop
	if budget > 0 {
		stop = c.RunFor(budget)
	} else {
		stop = c.Run()
	}
	logger.Debug().Stringer("reason", stop).Uint16("pc", c.PC).Int("unread", kbd.Remaining()).Msg("program stopped")

	switch stop {
	case cpu.StopHalted:
		return c, nil
	case cpu.StopInputExhausted:
		return c, cpu.ErrInputExhausted
	case cpu.StopBudget:
		return c, errBudget
	case cpu.StopIllegal:
		return c, eris.Errorf("illegal instruction at x%04X", c.PC)
	}
	return c, eris.Errorf("program stopped: %v", stop)
}

func registerSummary(c *cpu.CPU) string {
	s := fmt.Sprintf("PC=x%04X IR=x%04X PSR=x%04X (%s)\n", c.PC, c.IR, c.PSR, isa.CCName(c.PSR))
	for i, r := range c.Regs {
		s += fmt.Sprintf("R%d=x%04X ", i, r)
	}
	return s + "\n"
}
