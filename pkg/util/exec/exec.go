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

// Package exec runs external processes and captures their outcome for error
// propagation. Every host collaborator (lvm, sgdisk, mkfs, the service
// manager, the ceph tools) is driven through the Executor interface so tests
// can intercept each invocation.
package exec

import (
	"bufio"
	"bytes"
	"io"
	"os/exec"
	"strings"

	"github.com/coreos/pkg/capnslog"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "exec")

// Executor is the interface for running host commands.
type Executor interface {
	ExecuteCommand(command string, arg ...string) error
	ExecuteCommandWithOutput(command string, arg ...string) (string, error)
	ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error)
}

// CommandExecutor is the production executor that spawns real processes.
type CommandExecutor struct {
}

// ExecuteCommand runs the command, streaming its stdout to the log. A
// non-zero exit returns a *CommandError carrying the captured stderr.
func (*CommandExecutor) ExecuteCommand(command string, arg ...string) error {
	cmd := exec.Command(command, arg...)
	logCommand(command, arg...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return err
	}

	in := bufio.NewScanner(io.Reader(stdout))
	for in.Scan() {
		logger.Debugf("%s: %s", command, in.Text())
	}

	if err := cmd.Wait(); err != nil {
		return newCommandError(command, err, stderr.String())
	}
	return nil
}

// ExecuteCommandWithOutput runs the command and returns its trimmed stdout.
func (*CommandExecutor) ExecuteCommandWithOutput(command string, arg ...string) (string, error) {
	cmd := exec.Command(command, arg...)
	logCommand(command, arg...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stdout.String()), newCommandError(command, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ExecuteCommandWithCombinedOutput runs the command and returns interleaved
// stdout and stderr.
func (*CommandExecutor) ExecuteCommandWithCombinedOutput(command string, arg ...string) (string, error) {
	cmd := exec.Command(command, arg...)
	logCommand(command, arg...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(output)), newCommandError(command, err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

func logCommand(command string, arg ...string) {
	logger.Debugf("Running command: %s %s", command, strings.Join(arg, " "))
}
