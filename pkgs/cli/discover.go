package cli

import (
	"github.com/mcowger/carvera-controller-core/pkgs/app"
	"github.com/spf13/cobra"
)

func NewDiscoverCommand(a *app.CarveraApp) *cobra.Command {
	type Args struct {
		WindowSec int
	}
	cmdArgs := Args{}

	command := &cobra.Command{
		Use:   "discover",
		Short: "Broadcasts a discovery query and lists machines found",
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.DiscoverAction(cmdArgs.WindowSec)
		},
	}

	command.Flags().IntVarP(&cmdArgs.WindowSec, "window", "w", 0, "Listen window in seconds (defaults to the library's 3s window)")

	return command
}
