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
package osd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdadm/osdadm/pkg/ceph/client"
	clienttest "github.com/osdadm/osdadm/pkg/ceph/client/test"
	"github.com/osdadm/osdadm/pkg/clusterd"
	"github.com/osdadm/osdadm/pkg/util/errkind"
	exectest "github.com/osdadm/osdadm/pkg/util/exec/test"
	"github.com/osdadm/osdadm/pkg/util/svc"
)

func testAgent(executor *exectest.MockExecutor, conn *clienttest.MockConnection, version client.CephVersion, osdRoot string) *Agent {
	context := &clusterd.Context{Executor: executor, ConfigDir: "/etc/osdadm", OsdRoot: osdRoot}
	config := &Config{ConfigFile: "/etc/ceph/ceph.conf", UserID: "admin"}
	services := svc.NewManagerWithInit(executor, svc.InitSystemd)
	return newAgent(context, config, conn, version, services)
}

func TestLayoutSelection(t *testing.T) {
	executor := &exectest.MockExecutor{}
	conn := &clienttest.MockConnection{}

	a := testAgent(executor, conn, client.CephVersion{Major: 12, Minor: 2, Patch: 13}, t.TempDir())
	assert.Equal(t, layoutBluestore, a.layout)

	a = testAgent(executor, conn, client.CephVersion{Major: 10, Minor: 2, Patch: 11}, t.TempDir())
	assert.Equal(t, layoutFilestore, a.layout)
}

func TestOsdWeight(t *testing.T) {
	assert.InDelta(t, 0.01, osdWeight(10*(1<<30)), 1e-9)
	assert.InDelta(t, 0.0, osdWeight((1<<30)-1), 1e-9)
	assert.InDelta(t, 0.001, osdWeight(1<<30), 1e-9)
}

func TestAddDiskSimulate(t *testing.T) {
	// a dry run must not execute a single mutating command or mon command
	executor := &exectest.MockExecutor{
		MockExecuteCommand: func(command string, args ...string) error {
			t.Fatalf("simulate mode executed %s %v", command, args)
			return nil
		},
		MockExecuteCommandWithOutput: func(command string, args ...string) (string, error) {
			switch command {
			case "lsblk":
				return `NAME="sdz" SIZE="10737418240" ROTA="0" TYPE="disk"`, nil
			case "blkid":
				return "", nil
			}
			t.Fatalf("unexpected probe %s %v", command, args)
			return "", nil
		},
	}
	conn := &clienttest.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			t.Fatalf("simulate mode issued mon command %s", string(args))
			return nil, "", nil
		},
	}

	a := testAgent(executor, conn, client.CephVersion{Major: 14, Minor: 2, Patch: 22}, t.TempDir())
	require.NoError(t, a.AddDisk("/dev/sdz", nil, true))

	// id allocation, volume provisioning and service startup are planned in
	// that relative order
	alloc, provision, start := -1, -1, -1
	for i, step := range a.plan {
		switch {
		case strings.HasPrefix(step, "allocate osd id"):
			alloc = i
		case strings.HasPrefix(step, "provision logical volume"):
			provision = i
		case strings.HasPrefix(step, "enable and start"):
			start = i
		}
	}
	require.GreaterOrEqual(t, alloc, 0)
	assert.Greater(t, provision, alloc)
	assert.Greater(t, start, provision)
}

func TestRemoveDiskUnownedDevice(t *testing.T) {
	// no volume group and no filestore marker behind the mountpoint
	mount := t.TempDir()
	executor := &exectest.MockExecutor{
		MockExecuteCommandWithOutput: func(command string, args ...string) (string, error) {
			switch command {
			case "pvs":
				return "", errkind.New(errkind.ExternalToolFailure, "no PV found")
			case "findmnt":
				return mount + "\n", nil
			}
			t.Fatalf("unexpected command %s %v", command, args)
			return "", nil
		},
	}
	conn := &clienttest.MockConnection{}

	a := testAgent(executor, conn, client.CephVersion{Major: 14}, t.TempDir())
	err := a.RemoveDisk("/dev/sdz", false)
	require.Error(t, err)
	assert.Equal(t, errkind.NotFound, errkind.GetKind(err))
}

func TestSafeToRemove(t *testing.T) {
	responses := map[string]string{
		"safe":    `{"num_pg_by_state":[{"name":"active+clean","num":16}],"num_pgs":16}`,
		"nonsafe": `{"num_pg_by_state":[{"name":"active+degraded","num":16}],"num_pgs":16}`,
		"unknown": `{"num_pg_by_state":[],"num_pgs":0}`,
	}
	expected := map[string]bool{"safe": true, "nonsafe": false, "unknown": false}

	for name, response := range responses {
		t.Run(name, func(t *testing.T) {
			conn := &clienttest.MockConnection{
				MockMonCommand: func(args []byte) ([]byte, string, error) {
					return []byte(response), "", nil
				},
			}
			a := testAgent(&exectest.MockExecutor{}, conn, client.CephVersion{Major: 14}, t.TempDir())
			safe, err := a.SafeToRemove("/dev/sdz")
			require.NoError(t, err)
			assert.Equal(t, expected[name], safe)
		})
	}
}

func TestJournalSizeBytes(t *testing.T) {
	conn := &clienttest.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			return []byte(`"5120"`), "", nil
		},
	}
	a := testAgent(&exectest.MockExecutor{}, conn, client.CephVersion{Major: 14}, t.TempDir())

	size, err := a.journalSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(5120*1024*1024), size)
}

func TestOsdUnitNames(t *testing.T) {
	executor := &exectest.MockExecutor{}
	conn := &clienttest.MockConnection{}

	a := testAgent(executor, conn, client.CephVersion{Major: 14}, t.TempDir())
	assert.Equal(t, "ceph-osd@3", a.osdUnit(3))

	context := &clusterd.Context{Executor: executor}
	a = newAgent(context, &Config{}, conn, client.CephVersion{Major: 14}, svc.NewManagerWithInit(executor, svc.InitUpstart))
	assert.Equal(t, "ceph-osd id=3", a.osdUnit(3))
}
