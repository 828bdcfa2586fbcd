/*
Copyright 2019 The Osdadm Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package exec

import (
	"os/exec"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Command: "sgdisk", ExitStatus: 2, Stderr: "Problem opening /dev/sdz for reading!"}
	assert.Equal(t, "sgdisk failed: Problem opening /dev/sdz for reading!", err.Error())

	err = &CommandError{Command: "sgdisk", ExitStatus: 2, Err: errors.New("exit status 2")}
	assert.Equal(t, "sgdisk failed: exit status 2", err.Error())
}

func TestExitStatus(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 3")
	err := cmd.Run()
	require.Error(t, err)

	status, ok := ExitStatus(err)
	assert.True(t, ok)
	assert.Equal(t, 3, status)

	_, ok = ExitStatus(errors.New("not an exit error"))
	assert.False(t, ok)
}

func TestCommandExecutorCapturesStderr(t *testing.T) {
	executor := &CommandExecutor{}

	err := executor.ExecuteCommand("sh", "-c", "echo bad disk >&2; exit 2")
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 2, cmdErr.ExitStatus)
	assert.Contains(t, cmdErr.Stderr, "bad disk")
	assert.Contains(t, err.Error(), "bad disk")
}

func TestExecuteCommandWithOutput(t *testing.T) {
	executor := &CommandExecutor{}

	out, err := executor.ExecuteCommandWithOutput("echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestExecuteCommandWithCombinedOutput(t *testing.T) {
	executor := &CommandExecutor{}

	out, err := executor.ExecuteCommandWithCombinedOutput("sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")

	out, err = executor.ExecuteCommandWithCombinedOutput("sh", "-c", "echo boom; exit 2")
	require.Error(t, err)
	assert.Equal(t, "boom", out)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 2, cmdErr.ExitStatus)
}
