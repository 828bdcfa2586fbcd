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
package fstab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var osdEntry = Entry{
	Spec:       "UUID=9a7b1c2d-3e4f-4a5b-8c9d-0e1f2a3b4c5d",
	MountPoint: "/var/lib/ceph/osd/ceph-3",
	VfsType:    "xfs",
	Options:    []string{"noatime", "inode64", "attr2", "logbsize=256k", "noquota"},
	Dump:       false,
	FsckOrder:  2,
}

func TestEntryString(t *testing.T) {
	assert.Equal(t,
		"UUID=9a7b1c2d-3e4f-4a5b-8c9d-0e1f2a3b4c5d\t/var/lib/ceph/osd/ceph-3\txfs\tnoatime,inode64,attr2,logbsize=256k,noquota\t0\t2",
		osdEntry.String())
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	added, err := Add(path, osdEntry)
	require.NoError(t, err)
	assert.True(t, added)

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, osdEntry, entries[0])
}

func TestAddReplacesExistingMountpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")
	content := "# system mounts\n" +
		"/dev/sda1\t/\text4\tdefaults\t0\t1\n" +
		"/dev/sdb1\t/var/lib/ceph/osd/ceph-3\text4\tdefaults\t0\t0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	added, err := Add(path, osdEntry)
	require.NoError(t, err)
	assert.False(t, added)

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/", entries[0].MountPoint)
	assert.Equal(t, osdEntry, entries[1])
}

func TestReadSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")
	content := "# comment\n\n/dev/sda1 / ext4 defaults 0 1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/dev/sda1", entries[0].Spec)
	assert.False(t, entries[0].Dump)
	assert.Equal(t, 1, entries[0].FsckOrder)
}

func TestReadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")
	require.NoError(t, os.WriteFile(path, []byte("/dev/sda1 /\n"), 0644))

	_, err := Read(path)
	assert.Error(t, err)
}

func TestDefaultOptions(t *testing.T) {
	entry := Entry{Spec: "/dev/sdb1", MountPoint: "/mnt", VfsType: "xfs"}
	assert.Equal(t, "/dev/sdb1\t/mnt\txfs\tdefaults\t0\t0", entry.String())
}
