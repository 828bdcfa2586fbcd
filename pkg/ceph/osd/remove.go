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
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/osdadm/osdadm/pkg/ceph/client"
	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/lvm"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

// remove resolves which layout backs the device and tears it down. A device
// backing a volume group is a bluestore OSD; otherwise a mounted filesystem
// with a filestore type marker is a legacy OSD; anything else is not ours.
func (a *Agent) remove(device string, simulate bool) error {
	l := lvm.New(a.context.Executor)

	vgName, err := l.VolumeGroupForDevice(device)
	if err == nil {
		return a.removeBluestore(l, vgName, device, simulate)
	}
	if !errkind.IsNotFound(err) {
		return err
	}

	logger.Debugf("%s backs no volume group, checking for a legacy filestore osd", device)
	return a.removeFilestore(device, simulate)
}

// removeBluestore tears down a logical-volume-backed OSD. The volume tags
// are the only source of the OSD's id and fsid.
func (a *Agent) removeBluestore(l *lvm.LVM, vgName, device string, simulate bool) error {
	vg, err := l.OpenVolumeGroup(vgName)
	if err != nil {
		return err
	}
	volumes, err := vg.ListLogicalVolumes()
	if err != nil {
		return err
	}
	if len(volumes) == 0 {
		return errkind.New(errkind.StateInconsistency, "volume group %s on %s has no logical volumes", vgName, device)
	}

	osdID := -1
	var osdFSID uuid.UUID
	var identityErr error
	for _, lv := range volumes {
		tags, err := lv.Tags()
		if err != nil {
			return err
		}
		if osdID, osdFSID, identityErr = osdFromTags(tags); identityErr == nil {
			break
		}
	}
	if identityErr != nil {
		return identityErr
	}
	logger.Infof("%s backs osd.%d (fsid %s)", device, osdID, osdFSID)

	if simulate {
		a.simulateStep("remove osd.%d from the cluster and tear down %s", osdID, vgName)
		return nil
	}

	if err := client.OSDOut(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := client.CrushRemove(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := client.AuthDelete(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := a.services.Stop(a.osdUnit(osdID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := client.RemoveOSD(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	for _, lv := range volumes {
		if err := lv.Deactivate(); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
		if err := lv.Remove(); err != nil {
			return errors.Wrapf(err, "osd.%d", osdID)
		}
	}
	if err := vg.Remove(); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := l.RemovePhysicalVolume(device); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	// the device is headed for replacement; a failed erase is not fatal
	if err := sys.WipeDevice(a.context.Executor, device); err != nil {
		logger.Errorf("best-effort erase of %s failed: %v", device, err)
	}

	dir := osdDataDir(a.context.OsdRoot, osdID)
	if err := os.RemoveAll(dir); err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to remove %s", osdID, dir)
	}

	if err := a.services.Disable(volumeUnit(osdID, osdFSID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := a.services.Disable(a.osdUnit(osdID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	logger.Infof("osd.%d on %s is removed", osdID, device)
	return nil
}

// removeFilestore tears down a legacy formatted-filesystem OSD. The device's
// existing mount, or a temporary one, is used only to read the OSD id.
func (a *Agent) removeFilestore(device string, simulate bool) error {
	executor := a.context.Executor

	mountPoint, mounted, err := sys.GetDeviceMountPoint(executor, device)
	if err != nil {
		return err
	}

	tempMount := false
	if !mounted {
		if simulate {
			return errkind.New(errkind.NotFound, "%s backs no volume group and is not mounted, nothing to remove", device)
		}
		info, err := sys.GetDeviceInfo(executor, device)
		if err != nil {
			return err
		}
		mountPoint, err = os.MkdirTemp("", "osd-probe-")
		if err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "failed to create a probe mountpoint for %s", device)
		}
		defer os.RemoveAll(mountPoint)
		if err := sys.MountDevice(executor, info, mountPoint); err != nil {
			return err
		}
		tempMount = true
	}

	marker, err := os.ReadFile(filepath.Join(mountPoint, typeFileName))
	if err != nil || strings.TrimSpace(string(marker)) != "filestore" {
		if tempMount {
			if err := sys.UnmountDevice(executor, mountPoint); err != nil {
				logger.Errorf("failed to unmount probe mount %s: %v", mountPoint, err)
			}
		}
		return errkind.New(errkind.NotFound, "%s backs no volume group and carries no filestore marker", device)
	}

	osdID, err := readFilestoreID(mountPoint)
	if err != nil {
		return err
	}
	logger.Infof("%s backs filestore osd.%d", device, osdID)

	if simulate {
		a.simulateStep("remove osd.%d from the cluster and unmount %s", osdID, device)
		return nil
	}

	if err := client.OSDOut(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := client.CrushRemove(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := client.AuthDelete(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := a.services.Stop(a.osdUnit(osdID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if err := client.RemoveOSD(a.conn, osdID); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	if err := sys.UnmountDevice(executor, mountPoint); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}
	if !tempMount {
		if err := os.RemoveAll(mountPoint); err != nil {
			return errkind.Wrap(errkind.IOFailure, err, "osd.%d: failed to remove %s", osdID, mountPoint)
		}
	}

	if err := sys.WipeDevice(executor, device); err != nil {
		logger.Errorf("best-effort erase of %s failed: %v", device, err)
	}

	if err := a.services.Disable(a.osdUnit(osdID)); err != nil {
		return errors.Wrapf(err, "osd.%d", osdID)
	}

	logger.Infof("osd.%d on %s is removed", osdID, device)
	return nil
}

// readFilestoreID reads the OSD id from the whoami marker, falling back to
// the mount directory's name. The directory name is not authoritative, so
// the fallback is logged as best-effort.
func readFilestoreID(mountPoint string) (int, error) {
	if buf, err := os.ReadFile(filepath.Join(mountPoint, whoamiFileName)); err == nil {
		id, err := strconv.Atoi(strings.TrimSpace(string(buf)))
		if err == nil {
			return id, nil
		}
		logger.Errorf("malformed whoami marker in %s: %v", mountPoint, err)
	}

	base := filepath.Base(mountPoint)
	suffix := strings.TrimPrefix(base, clusterName+"-")
	id, err := strconv.Atoi(suffix)
	if err != nil {
		return -1, errkind.New(errkind.StateInconsistency, "no whoami marker in %s and directory name %q carries no osd id", mountPoint, base)
	}
	logger.Warningf("no whoami marker in %s, falling back to the directory name for the osd id (best effort)", mountPoint)
	return id, nil
}
