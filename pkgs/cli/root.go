package cli

import (
	"errors"

	"github.com/mcowger/carvera-controller-core/pkgs/app"
	"github.com/spf13/cobra"
)

func NewRootCommand(a *app.CarveraApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "carverad",
		Short: "Headless control CLI for a desktop CNC machine",
		RunE: func(command *cobra.Command, args []string) error {
			return errors.New("please select a command")
		},
	}

	command.PersistentFlags().BoolVarP(&a.Debug, "debug", "v", false, "Increase verbosity to the debug level")

	command.AddCommand(NewConnectCommand(a))
	command.AddCommand(NewGCodeCommand(a))
	command.AddCommand(NewTransferCommand(a))
	command.AddCommand(NewDiscoverCommand(a))

	return command
}
