package testutils

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
)

// RunCmdpool executes a cmdpool binary with the given arguments, stdin is optional.
func RunCmdpool(ctx context.Context, env []string, binary string, args []string, stdin io.Reader, nolog bool) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &outData
	cmd.Stderr = &errData
	cmd.Stdin = stdin

	// Set env: os.Environ() first, then custom env overrides on top.
	// In Go's exec.Cmd, when duplicate keys exist, the last one wins.
	newEnv := append([]string{}, os.Environ()...)
	newEnv = append(newEnv, env...)
	if nolog {
		newEnv = append(newEnv, "CMDPOOL_NO_LOG=true")
	}
	cmd.Env = newEnv

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}
