package cli

import (
	"github.com/mcowger/carvera-controller-core/pkgs/app"
	"github.com/spf13/cobra"
)

func NewConnectCommand(a *app.CarveraApp) *cobra.Command {
	type Args struct {
		Address string
		Kind    string
	}

	cmdArgs := Args{}
	command := &cobra.Command{
		Use:   "connect",
		Short: "Opens a link to the machine and reports its status",
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			return a.ConnectAction(cmdArgs.Address, cmdArgs.Kind)
		},
	}

	command.Flags().StringVarP(&cmdArgs.Address, "address", "a", "", "Address to connect to (host:port for TCP, device path for serial)")
	command.Flags().StringVarP(&cmdArgs.Kind, "kind", "k", "", "Transport kind: 'tcp' or 'serial'")

	return command
}
