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
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// CommandError is returned when a spawned process exits non-zero. The
// message presented to callers is the captured stderr text when there is
// any, since the tool's own diagnostics beat a bare exit status.
type CommandError struct {
	Command    string
	ExitStatus int
	Stderr     string
	Err        error
}

func newCommandError(command string, err error, stderr string) *CommandError {
	status := -1
	if s, ok := ExitStatus(err); ok {
		status = s
	}
	return &CommandError{
		Command:    command,
		ExitStatus: status,
		Stderr:     strings.TrimSpace(stderr),
		Err:        err,
	}
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitStatus extracts the process exit code from an exec error.
func ExitStatus(err error) (int, bool) {
	exitErr, ok := err.(*exec.ExitError)
	if ok {
		waitStatus, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus)
		if ok {
			return waitStatus.ExitStatus(), true
		}
	}
	return 0, false
}
