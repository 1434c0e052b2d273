//go:build windows

package engine

import (
	"errors"
	"os"
	"os/exec"
)

func configureEngineProcess(cmd *exec.Cmd) {}

func killEngineProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
