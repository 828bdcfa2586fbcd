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

	"github.com/osdadm/osdadm/pkg/ceph/client"
	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

// addBluestore provisions a logical-volume-backed OSD on the device. Steps
// run in a fixed order with no automatic rollback: a mid-sequence failure is
// surfaced with the allocated id so the operator can finish cleanup via
// RemoveDisk.
func (a *Agent) addBluestore(device string, requestedID *int, simulate bool) error {
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

	var vol *volume
	if simulate {
		a.simulateStep("provision logical volume on %s", device)
	} else {
		vol, err = createLvm(executor, device, osdFSID)
		if err != nil {
			return errors.Wrapf(err, "osd.%d is allocated but volume provisioning on %s failed", osdID, device)
		}
	}

	if simulate {
		a.simulateStep("tag the data volume with the cluster identity")
	} else {
		clusterFSID, err := a.conn.GetFSID()
		if err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		tags := buildTags(vol.path, osdID, osdFSID, clusterFSID, vol.lv.UUID, journal, info.Media)
		if err := applyTags(vol.lv, tags); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
	}

	var dir string
	var uid, gid int
	if simulate {
		a.simulateStep("create the data directory and fsid marker")
	} else {
		dir = osdDataDir(a.context.OsdRoot, osdID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to create %s", osdID, dir)
		}
		if err := writeFSIDFile(dir, osdFSID); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		if uid, gid, err = lookupServiceAccount(); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
	}

	if simulate {
		a.simulateStep("link the data volume and journal into the data directory")
	} else {
		// the dm path is itself a symlink; the block link points at the
		// real backing device
		target, err := filepath.EvalSymlinks(vol.path)
		if err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to resolve %s", osdID, vol.path)
		}
		if err := os.Symlink(target, filepath.Join(dir, "block")); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to link block device", osdID)
		}
		if journal != nil {
			if err := os.Symlink(journal.String(), filepath.Join(dir, "block.wal")); err != nil {
				return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to link journal", osdID)
			}
			if err := os.Chown(journal.String(), uid, gid); err != nil {
				return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to chown journal %s", osdID, journal)
			}
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
		a.simulateStep("run the engine mkfs and volume priming tools")
	} else {
		// mkfs diagnostics land on both streams
		output, err := executor.ExecuteCommandWithCombinedOutput("ceph-osd",
			"--cluster", clusterName,
			"-i", strconv.Itoa(osdID),
			"--mkfs",
			"--monmap", filepath.Join(dir, monmapFileName),
			"--osd-data", dir,
			"--osd-uuid", osdFSID.String(),
			"--osd-objectstore", "bluestore",
			"--setuser", serviceAccount,
			"--setgroup", serviceAccount)
		if err != nil {
			return errkind.Wrap(errkind.ExternalToolFailure, err, "osd.%d: mkfs failed on %s: %s", osdID, device, output)
		}
		logger.Debugf("ceph-osd mkfs: %s", output)
		if err := executor.ExecuteCommand("ceph-bluestore-tool",
			"--cluster="+clusterName,
			"prime-osd-dir",
			"--dev", vol.path,
			"--path", dir); err != nil {
			return errkind.Wrap(errkind.ExternalToolFailure, err, "osd.%d: priming %s failed", osdID, vol.path)
		}
	}

	if simulate {
		a.simulateStep("register the osd in the placement hierarchy")
	} else {
		weight := osdWeight(vol.vgSize)
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
	if err := a.services.Enable(volumeUnit(osdID, osdFSID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
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

// volumeUnit names the boot-time volume activation unit for a bluestore OSD.
func volumeUnit(osdID int, osdFSID uuid.UUID) string {
	return "ceph-volume@lvm-" + strconv.Itoa(osdID) + "-" + osdFSID.String()
}
