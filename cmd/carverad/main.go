package main

import (
	"os"

	"github.com/mcowger/carvera-controller-core/pkgs/app"
	"github.com/mcowger/carvera-controller-core/pkgs/cli"
	"github.com/mcowger/carvera-controller-core/pkgs/output"
)

func main() {
	a := app.CarveraApp{P: output.ConsolePrinter{}}
	cmd := cli.NewRootCommand(&a)
	args := os.Args
	if args != nil {
		args = args[1:]
		cmd.SetArgs(args)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
