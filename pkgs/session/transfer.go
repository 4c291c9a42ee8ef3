package session

import (
	"fmt"
	"os"

	"github.com/mcowger/carvera-controller-core/pkgs/filetransfer"
)

// announceTransfer tells the firmware which file is about to move over the
// XMODEM link, using the Carvera-specific M494 sub-codes (in the same
// family as AutoCommand's M495; the exact line syntax is unspecified
// upstream so this follows the machine's established M49x numbering).
func (s *Session) announceTransfer(direction, remoteName string) error {
	return s.Send(fmt.Sprintf("M494 %s %s", direction, remoteName))
}

// Upload sends the local file at localPath to the machine under remoteName,
// bracketing the wire protocol with the file-transfer link state (§4.F) and
// suppressing the background prober for the duration (§5, §8 keep-alive
// invariant).
func (s *Session) Upload(localPath, remoteName string, opts filetransfer.Options, progress filetransfer.ProgressFunc, cancel <-chan struct{}) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	if err := s.announceTransfer("U", remoteName); err != nil {
		return err
	}
	if err := s.BeginTransfer(); err != nil {
		return err
	}
	s.SetRunning(true)
	defer s.SetRunning(false)

	tr, err := s.RawTransport()
	if err != nil {
		s.EndTransfer(err)
		return err
	}

	uploadErr := filetransfer.Upload(tr, remoteName, data, opts, progress, cancel)
	s.EndTransfer(uploadErr)
	return uploadErr
}

// Download retrieves remoteName from the machine and writes it to localPath.
func (s *Session) Download(remoteName, localPath string, progress filetransfer.ProgressFunc, cancel <-chan struct{}) error {
	if err := s.announceTransfer("D", remoteName); err != nil {
		return err
	}
	if err := s.BeginTransfer(); err != nil {
		return err
	}
	s.SetRunning(true)
	defer s.SetRunning(false)

	tr, err := s.RawTransport()
	if err != nil {
		s.EndTransfer(err)
		return err
	}

	result, dlErr := filetransfer.Download(tr, progress, cancel)
	s.EndTransfer(dlErr)
	if dlErr != nil {
		return dlErr
	}

	return os.WriteFile(localPath, result.Data, 0o644)
}
