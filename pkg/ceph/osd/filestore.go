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
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/osdadm/osdadm/pkg/ceph/client"
	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/fstab"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

var filestoreFilesystem = sys.FilesystemSpec{
	Type:      "xfs",
	AgCount:   32,
	InodeSize: 2048,
	Force:     true,
}

var filestoreMountOptions = []string{"noatime", "inode64", "attr2", "logbsize=256k", "noquota"}

// overridable for tests
var statfs = unix.Statfs

// fstabPath is the mount table updated on filestore provisioning.
var fstabPath = fstab.DefaultPath

// addFilestore provisions a legacy formatted-filesystem OSD on the device.
// The raw device is formatted before an id is allocated, so a format failure
// leaves nothing to clean up in the cluster.
func (a *Agent) addFilestore(device string, requestedID *int, simulate bool) error {
	executor := a.context.Executor

	info, err := sys.GetDeviceInfo(executor, device)
	if err != nil {
		return err
	}

	var journal *JournalDevice
	if len(a.config.JournalDevices) > 0 {
		size, err := a.journalSizeBytes()
		if err != nil {
			return err
		}
		journal, err = selectJournal(executor, a.config.JournalDevices, size, a.context.OsdRoot, simulate)
		if err != nil {
			return err
		}
	}

	if simulate {
		a.simulateStep("format %s with %s", device, filestoreFilesystem.Type)
	} else {
		if err := sys.FormatDevice(executor, device, filestoreFilesystem); err != nil {
			return err
		}
		if err := sys.SettleUdev(executor); err != nil {
			return err
		}
		// re-probe for the fresh filesystem uuid
		if info, err = sys.GetDeviceInfo(executor, device); err != nil {
			return err
		}
	}

	osdFSID := uuid.New()

	osdID := -1
	if simulate {
		a.simulateStep("allocate osd id for fsid %s", osdFSID)
	} else {
		osdID, err = client.CreateOSD(a.conn, osdFSID, requestedID)
		if err != nil {
			return err
		}
		logger.Infof("allocated osd.%d (fsid %s) for %s", osdID, osdFSID, device)
	}

	var dir string
	var uid, gid int
	if simulate {
		a.simulateStep("mount %s and record it in the mount table", device)
	} else {
		dir = osdDataDir(a.context.OsdRoot, osdID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to create %s", osdID, dir)
		}
		if err := sys.MountDevice(executor, info, dir); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}

		spec := device
		if info.FSUUID != nil {
			spec = "UUID=" + info.FSUUID.String()
		}
		if _, err := fstab.Add(fstabPath, fstab.Entry{
			Spec:       spec,
			MountPoint: dir,
			VfsType:    filestoreFilesystem.Type,
			Options:    filestoreMountOptions,
			Dump:       false,
			FsckOrder:  2,
		}); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}

		if err := writeFSIDFile(dir, osdFSID); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		if uid, gid, err = lookupServiceAccount(); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
	}

	if simulate {
		a.simulateStep("link the journal into the data directory")
	} else if journal != nil {
		if err := os.Symlink(journal.String(), filepath.Join(dir, "journal")); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to link journal", osdID)
		}
		if err := os.Chown(journal.String(), uid, gid); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to chown journal %s", osdID, journal)
		}
	}

	if simulate {
		a.simulateStep("fetch the monmap into the data directory")
	} else {
		monmap, err := client.GetMonMap(a.conn)
		if err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		if err := writeMonmap(dir, monmap); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
	}

	if simulate {
		a.simulateStep("chown the data directory to the service account")
	} else if err := chownRecursive(dir, uid, gid); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	if simulate {
		a.simulateStep("register the osd auth key")
	} else {
		key, err := client.AuthGetOrCreate(a.conn, osdID)
		if err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		if err := writeKeyring(dir, osdID, key); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		if err := os.Chown(filepath.Join(dir, keyringFileName), uid, gid); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to chown keyring", osdID)
		}
	}

	if simulate {
		a.simulateStep("run the engine mkfs tool")
	} else {
		args := []string{
			"--cluster", clusterName,
			"-i", strconv.Itoa(osdID),
			"--mkfs",
			"--monmap", filepath.Join(dir, monmapFileName),
			"--osd-data", dir,
			"--osd-uuid", osdFSID.String(),
			"--setuser", serviceAccount,
			"--setgroup", serviceAccount,
		}
		if journal != nil {
			args = append(args, "--osd-journal", journal.String())
		}
		// mkfs diagnostics land on both streams
		output, err := executor.ExecuteCommandWithCombinedOutput("ceph-osd", args...)
		if err != nil {
			return errkind.Wrap(errkind.ExternalToolFailure, err, "osd.%d: mkfs failed on %s: %s", osdID, device, output)
		}
		logger.Debugf("ceph-osd mkfs: %s", output)
	}

	if simulate {
		a.simulateStep("register the osd in the placement hierarchy")
	} else {
		capacity, err := filesystemCapacity(dir)
		if err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		weight := osdWeight(capacity)
		host, err := os.Hostname()
		if err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to read the hostname", osdID)
		}
		if err := client.CrushAdd(a.conn, osdID, weight, host); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		logger.Infof("registered osd.%d under %s with weight %.3f", osdID, host, weight)
	}

	if simulate {
		a.simulateStep("enable and start the osd service")
		return nil
	}
	if err := a.services.Enable(a.osdUnit(osdID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := a.services.Start(a.osdUnit(osdID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	logger.Infof("osd.%d on %s is up", osdID, device)
	return nil
}

// filesystemCapacity reports the byte capacity of the mounted filesystem.
func filesystemCapacity(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := statfs(dir, &stat); err != nil {
		return 0, errkind.Wrap(errkind.IOFailure, err, "statfs on %s failed", dir)
	}
	return stat.Blocks * uint64(stat.Bsize), nil
}
