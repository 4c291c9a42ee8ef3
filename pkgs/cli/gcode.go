package cli

import (
	"bufio"
	"os"

	"github.com/mcowger/carvera-controller-core/pkgs/app"
	"github.com/spf13/cobra"
)

func NewGCodeCommand(a *app.CarveraApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "gcode",
		Short: "G-code parsing utilities",
	}
	command.AddCommand(NewGCodeParseCommand(a))
	return command
}

func NewGCodeParseCommand(a *app.CarveraApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parses a program and prints its interpolated machine-coordinate path",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}

			f, openErr := os.Open(args[0])
			if openErr != nil {
				return openErr
			}
			defer f.Close()

			var lines []string
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
			if scanErr := scanner.Err(); scanErr != nil {
				return scanErr
			}

			return a.GCodeParseAction(lines)
		},
	}
	return command
}
