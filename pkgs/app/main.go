// Package app is the controller layer between the CLI and the library
// packages: everything needed to perform one CLI action lives here, and all
// output goes through the Printer seam (§4.J) — never a bare fmt.Print in
// an action method.
package app

import (
	"fmt"
	"path/filepath"

	"github.com/mcowger/carvera-controller-core/pkgs/config"
	"github.com/mcowger/carvera-controller-core/pkgs/discovery"
	"github.com/mcowger/carvera-controller-core/pkgs/filetransfer"
	"github.com/mcowger/carvera-controller-core/pkgs/gcode"
	"github.com/mcowger/carvera-controller-core/pkgs/output"
	"github.com/mcowger/carvera-controller-core/pkgs/session"
	"github.com/mcowger/carvera-controller-core/pkgs/transport"
	"github.com/sirupsen/logrus"
)

type CarveraApp struct {
	Config *config.Config
	Sess   *session.Session

	// runtime parameters
	Debug bool
	P     output.Printer
}

// Initialize is run after parsing the arguments, so we know how to
// configure the app.
func (app *CarveraApp) Initialize() error {
	if app.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	logrus.Debug("reading configuration files")
	cfg, cfgErr := config.Load()
	app.Config = cfg
	if cfgErr != nil {
		return fmt.Errorf("cannot initialize app: %s", cfgErr)
	}

	app.Sess = session.New()
	return nil
}

// ConnectAction opens the link and reports the resulting status.
func (app *CarveraApp) ConnectAction(address string, kind string) error {
	tkind := transport.Kind(kind)
	if tkind == "" {
		tkind = transport.Kind(app.Config.Connection.Kind)
	}
	if address == "" {
		if tkind == transport.TCP {
			address = fmt.Sprintf("%s:%d", app.Config.Connection.Address, app.Config.Connection.Port)
		} else {
			address = app.Config.Connection.Address
		}
	}
	if err := app.Sess.Connect(address, tkind); err != nil {
		return err
	}
	app.P.Printf("connected to %s (%s), status=%s\n", address, tkind, app.Sess.Status())
	return nil
}

// GCodeParseAction feeds each line of a program through the parser and
// prints the resulting machine-coordinate path, without opening a link.
func (app *CarveraApp) GCodeParseAction(lines []string) error {
	state := app.Sess.State()
	parser := gcode.NewParser(state)

	for i, line := range lines {
		parsed, err := parser.ParseLine(line, i+1)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		for _, pt := range parsed.Coordinates {
			app.P.Printf("N%d X%.4f Y%.4f Z%.4f A%.4f\n", pt.LineNo, pt.X, pt.Y, pt.Z, pt.A)
		}
	}
	return nil
}

// UploadAction drives a file upload through the connected session.
func (app *CarveraApp) UploadAction(localPath, remoteName string) error {
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	progress := func(done, total int64, kind filetransfer.Kind) {
		app.P.Printf("%s: %d/%d bytes\n", kind, done, total)
	}
	return app.Sess.Upload(localPath, remoteName, filetransfer.Options{}, progress, nil)
}

// DownloadAction drives a file download through the connected session.
func (app *CarveraApp) DownloadAction(remoteName, localPath string) error {
	progress := func(done, total int64, kind filetransfer.Kind) {
		app.P.Printf("%s: %d/%d bytes\n", kind, done, total)
	}
	return app.Sess.Download(remoteName, localPath, progress, nil)
}

// DiscoverAction runs one UDP broadcast query and prints the machines found.
func (app *CarveraApp) DiscoverAction(windowSec int) error {
	d := discovery.NewDiscoverer()
	if windowSec > 0 {
		d.Window = secondsToDuration(windowSec)
	}
	if err := d.Query(); err != nil {
		return err
	}
	for _, m := range d.Collect() {
		app.P.Printf("%s\t%s:%d\tbusy=%t\n", m.Name, m.IP, m.Port, m.Busy)
	}
	return nil
}
