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
package svc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	exectest "github.com/osdadm/osdadm/pkg/util/exec/test"
)

func withProcComm(t *testing.T, comm string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "comm")
	require.NoError(t, os.WriteFile(path, []byte(comm+"\n"), 0644))
	orig := initProcComm
	initProcComm = path
	t.Cleanup(func() { initProcComm = orig })
}

func TestDetectInitSystem(t *testing.T) {
	withProcComm(t, "systemd")
	init, err := DetectInitSystem()
	require.NoError(t, err)
	assert.Equal(t, InitSystemd, init)

	withProcComm(t, "init")
	init, err = DetectInitSystem()
	require.NoError(t, err)
	assert.Equal(t, InitUpstart, init)

	withProcComm(t, "busybox")
	init, err = DetectInitSystem()
	require.NoError(t, err)
	assert.Equal(t, InitUnknown, init)
}

func TestSystemdManager(t *testing.T) {
	commands := [][]string{}
	executor := &exectest.MockExecutor{
		MockExecuteCommand: func(command string, args ...string) error {
			commands = append(commands, append([]string{command}, args...))
			return nil
		},
	}

	m := NewManagerWithInit(executor, InitSystemd)
	require.NoError(t, m.Enable("ceph-osd@3"))
	require.NoError(t, m.Start("ceph-osd@3"))
	require.NoError(t, m.Stop("ceph-osd@3"))
	require.NoError(t, m.Disable("ceph-osd@3"))

	assert.Equal(t, [][]string{
		{"systemctl", "enable", "ceph-osd@3"},
		{"systemctl", "start", "ceph-osd@3"},
		{"systemctl", "stop", "ceph-osd@3"},
		{"systemctl", "disable", "ceph-osd@3"},
	}, commands)
}

func TestUnknownInitDeferredError(t *testing.T) {
	withProcComm(t, "busybox")
	executor := &exectest.MockExecutor{
		MockExecuteCommand: func(command string, args ...string) error {
			t.Fatalf("unexpected command %s", command)
			return nil
		},
	}

	m := NewManager(executor)
	assert.Equal(t, InitUnknown, m.InitSystem())

	for _, op := range []func(string) error{m.Start, m.Stop, m.Enable, m.Disable} {
		err := op("ceph-osd@3")
		require.Error(t, err)
		assert.Equal(t, errkind.NotFound, errkind.GetKind(err))
	}
}

func TestUpstartManager(t *testing.T) {
	commands := [][]string{}
	executor := &exectest.MockExecutor{
		MockExecuteCommand: func(command string, args ...string) error {
			commands = append(commands, append([]string{command}, args...))
			return nil
		},
	}

	m := NewManagerWithInit(executor, InitUpstart)
	require.NoError(t, m.Start("ceph-osd id=3"))
	require.NoError(t, m.Stop("ceph-osd id=3"))
	// upstart jobs are boot-enabled by their job files
	require.NoError(t, m.Enable("ceph-osd id=3"))
	require.NoError(t, m.Disable("ceph-osd id=3"))

	assert.Equal(t, [][]string{
		{"start", "ceph-osd", "id=3"},
		{"stop", "ceph-osd", "id=3"},
	}, commands)
}
