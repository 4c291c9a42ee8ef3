package cli

import (
	"github.com/mcowger/carvera-controller-core/pkgs/app"
	"github.com/spf13/cobra"
)

func NewTransferCommand(a *app.CarveraApp) *cobra.Command {
	command := &cobra.Command{
		Use:   "transfer",
		Short: "Uploads or downloads files over the machine link",
	}
	command.AddCommand(NewTransferUploadCommand(a))
	command.AddCommand(NewTransferDownloadCommand(a))
	return command
}

func NewTransferUploadCommand(a *app.CarveraApp) *cobra.Command {
	type Args struct {
		Address string
		Kind    string
		Remote  string
	}
	cmdArgs := Args{}

	command := &cobra.Command{
		Use:   "upload <local-file>",
		Short: "Uploads a local file to the machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			if err := a.ConnectAction(cmdArgs.Address, cmdArgs.Kind); err != nil {
				return err
			}
			return a.UploadAction(args[0], cmdArgs.Remote)
		},
	}

	command.Flags().StringVarP(&cmdArgs.Address, "address", "a", "", "Address to connect to")
	command.Flags().StringVarP(&cmdArgs.Kind, "kind", "k", "", "Transport kind: 'tcp' or 'serial'")
	command.Flags().StringVarP(&cmdArgs.Remote, "remote-name", "r", "", "Remote file name (defaults to the local file's base name)")

	return command
}

func NewTransferDownloadCommand(a *app.CarveraApp) *cobra.Command {
	type Args struct {
		Address string
		Kind    string
	}
	cmdArgs := Args{}

	command := &cobra.Command{
		Use:   "download <remote-name> <local-file>",
		Short: "Downloads a file from the machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			if err := a.Initialize(); err != nil {
				return err
			}
			if err := a.ConnectAction(cmdArgs.Address, cmdArgs.Kind); err != nil {
				return err
			}
			return a.DownloadAction(args[0], args[1])
		},
	}

	command.Flags().StringVarP(&cmdArgs.Address, "address", "a", "", "Address to connect to")
	command.Flags().StringVarP(&cmdArgs.Kind, "kind", "k", "", "Transport kind: 'tcp' or 'serial'")

	return command
}
