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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	exectest "github.com/osdadm/osdadm/pkg/util/exec/test"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

func TestBuildTags(t *testing.T) {
	osdFSID := uuid.MustParse("cccccccc-1111-2222-3333-444444444444")
	walUUID := uuid.MustParse("dddddddd-1111-2222-3333-444444444444")
	two := 2
	journal := &JournalDevice{Device: "/dev/sdd", Partition: &two, PartUUID: &walUUID}

	tags := buildTags("/dev/ceph-x/osd-block-y", 3, osdFSID, "eeeeeeee-1111-2222-3333-444444444444", "lvuuid123", journal, sys.MediaSolidState)

	assert.Equal(t, []string{
		"ceph.type=block",
		"ceph.block_device=/dev/ceph-x/osd-block-y",
		"ceph.osd_id=3",
		"ceph.osd_fsid=cccccccc-1111-2222-3333-444444444444",
		"ceph.cluster_name=ceph",
		"ceph.cluster_fsid=eeeeeeee-1111-2222-3333-444444444444",
		"ceph.encrypted=0",
		"ceph.cephx_lockbox_secret=",
		"ceph.block_uuid=lvuuid123",
		"ceph.wal_device=/dev/sdd2",
		"ceph.wal_uuid=dddddddd-1111-2222-3333-444444444444",
		"ceph.crush_device_class=ssd",
	}, tags)
}

func TestBuildTagsNoJournal(t *testing.T) {
	osdFSID := uuid.MustParse("cccccccc-1111-2222-3333-444444444444")
	tags := buildTags("/dev/vg/lv", 0, osdFSID, "fsid", "u", nil, sys.MediaUnknown)

	for _, tag := range tags {
		assert.False(t, strings.HasPrefix(tag, "ceph.wal_"), "unexpected tag %q", tag)
	}
	assert.Equal(t, "ceph.crush_device_class=None", tags[len(tags)-1])
}

func TestOsdFromTagsRoundTrip(t *testing.T) {
	osdFSID := uuid.MustParse("cccccccc-1111-2222-3333-444444444444")
	tags := buildTags("/dev/vg/lv", 42, osdFSID, "fsid", "u", nil, sys.MediaRotational)

	// unrelated tags interleaved with ours must not confuse recovery
	interleaved := []string{"foo=bar"}
	for _, tag := range tags {
		interleaved = append(interleaved, tag, "other.namespace=value")
	}

	id, fsid, err := osdFromTags(interleaved)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, osdFSID, fsid)
}

func TestOsdFromTagsIncomplete(t *testing.T) {
	_, _, err := osdFromTags([]string{"ceph.type=block", "ceph.osd_id=3"})
	require.Error(t, err)
	assert.Equal(t, errkind.StateInconsistency, errkind.GetKind(err))

	_, _, err = osdFromTags([]string{"ceph.osd_fsid=cccccccc-1111-2222-3333-444444444444"})
	require.Error(t, err)
	assert.Equal(t, errkind.StateInconsistency, errkind.GetKind(err))

	_, _, err = osdFromTags([]string{"ceph.osd_id=nope", "ceph.osd_fsid=cccccccc-1111-2222-3333-444444444444"})
	require.Error(t, err)
	assert.Equal(t, errkind.StateInconsistency, errkind.GetKind(err))
}

func TestCrushClass(t *testing.T) {
	assert.Equal(t, "ssd", crushClass(sys.MediaSolidState))
	assert.Equal(t, "hdd", crushClass(sys.MediaRotational))
	assert.Equal(t, "nvme", crushClass(sys.MediaNVMe))
	assert.Equal(t, "None", crushClass(sys.MediaUnknown))
}

func TestCreateLvm(t *testing.T) {
	osdFSID := uuid.MustParse("cccccccc-1111-2222-3333-444444444444")
	commands := []string{}

	vgSize := uint64(10737418240)
	executor := &exectest.MockExecutor{
		MockExecuteCommand: func(command string, args ...string) error {
			commands = append(commands, command+" "+strings.Join(args, " "))
			return nil
		},
		MockExecuteCommandWithOutput: func(command string, args ...string) (string, error) {
			switch command {
			case "vgs":
				if strings.Contains(strings.Join(args, " "), "vg_size") {
					return " 10737418240\n", nil
				}
				return " ceph-something\n", nil
			case "lvs":
				return " lvuuid123\n", nil
			}
			t.Fatalf("unexpected command %s %v", command, args)
			return "", nil
		},
	}

	vol, err := createLvm(executor, "/dev/sdz", osdFSID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(vol.vgName, "ceph-"))
	assert.Equal(t, "/dev/"+vol.vgName+"/osd-block-"+osdFSID.String(), vol.path)
	assert.Equal(t, vgSize, vol.vgSize)
	assert.Equal(t, "lvuuid123", vol.lv.UUID)

	require.Len(t, commands, 4)
	assert.Equal(t, "pvscan --cache", commands[0])
	assert.Equal(t, "pvcreate /dev/sdz", commands[1])
	assert.True(t, strings.HasPrefix(commands[2], "vgextend "+vol.vgName) || strings.HasPrefix(commands[2], "vgcreate "+vol.vgName))
	assert.Contains(t, commands[3], "lvcreate")
	// the volume is sized to the group capacity minus the reserve
	assert.Contains(t, commands[3], "10726932480b")
	assert.Contains(t, commands[3], "osd-block-"+osdFSID.String())
}
