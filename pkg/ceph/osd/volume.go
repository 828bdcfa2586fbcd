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
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/exec"
	"github.com/osdadm/osdadm/pkg/util/lvm"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

// lvmReserveBytes is held back from the volume group capacity when sizing
// the data volume. Sizing it to the full reported capacity fails.
const lvmReserveBytes = 10485760

const clusterName = "ceph"

// volume is the provisioned logical volume backing an OSD's data.
type volume struct {
	lv *lvm.LogicalVolume
	// vgName is the owning volume group
	vgName string
	// path is the /dev/<vg>/<lv> device-mapper path
	path string
	// vgSize is the volume group capacity in bytes
	vgSize uint64
}

// createLvm provisions a fresh volume group on the device and a single data
// volume filling it minus the reserve. Any sub-step failure aborts.
func createLvm(executor exec.Executor, device string, osdFSID uuid.UUID) (*volume, error) {
	l := lvm.New(executor)
	if err := l.Scan(); err != nil {
		return nil, err
	}

	vgName := fmt.Sprintf("ceph-%s", uuid.New())
	vg, err := l.CreateVolumeGroup(vgName)
	if err != nil {
		return nil, err
	}
	if err := vg.Extend(device); err != nil {
		return nil, err
	}
	if err := vg.Write(); err != nil {
		return nil, err
	}

	size, err := vg.Size()
	if err != nil {
		return nil, err
	}
	if size <= lvmReserveBytes {
		return nil, errkind.New(errkind.StateInconsistency, "volume group %s on %s is only %d bytes", vgName, device, size)
	}

	lvName := fmt.Sprintf("osd-block-%s", osdFSID)
	lv, err := vg.CreateLogicalVolume(lvName, size-lvmReserveBytes)
	if err != nil {
		return nil, err
	}

	logger.Infof("provisioned %s (%d bytes) for osd %s on %s", lv.DevicePath(), size, osdFSID, device)
	return &volume{lv: lv, vgName: vgName, path: lv.DevicePath(), vgSize: size}, nil
}

// crushClass maps the probed media type to the crush device class tag value.
func crushClass(media sys.MediaType) string {
	switch media {
	case sys.MediaSolidState:
		return "ssd"
	case sys.MediaRotational:
		return "hdd"
	case sys.MediaNVMe:
		return "nvme"
	}
	return "None"
}

// buildTags assembles the ordered tag set recorded on the data volume. The
// tags are the only durable record of the volume's cluster ownership.
func buildTags(lvPath string, osdID int, osdFSID uuid.UUID, clusterFSID, blockUUID string, journal *JournalDevice, media sys.MediaType) []string {
	tags := []string{
		"ceph.type=block",
		"ceph.block_device=" + lvPath,
		"ceph.osd_id=" + strconv.Itoa(osdID),
		"ceph.osd_fsid=" + osdFSID.String(),
		"ceph.cluster_name=" + clusterName,
		"ceph.cluster_fsid=" + clusterFSID,
		"ceph.encrypted=0",
		"ceph.cephx_lockbox_secret=",
		"ceph.block_uuid=" + blockUUID,
	}
	if journal != nil {
		tags = append(tags, "ceph.wal_device="+journal.String())
		if journal.PartUUID != nil {
			tags = append(tags, "ceph.wal_uuid="+journal.PartUUID.String())
		}
	}
	return append(tags, "ceph.crush_device_class="+crushClass(media))
}

// applyTags writes the tags one at a time. A mid-sequence failure leaves the
// volume partially tagged; the caller surfaces the error for manual cleanup.
func applyTags(lv *lvm.LogicalVolume, tags []string) error {
	for _, tag := range tags {
		if err := lv.AddTag(tag); err != nil {
			return err
		}
	}
	return nil
}

// osdFromTags recovers the OSD id and fsid from a volume's tag set. Tags are
// the sole source of this identity, so a tag set lacking either value is a
// state inconsistency.
func osdFromTags(tags []string) (int, uuid.UUID, error) {
	var (
		id      = -1
		fsid    uuid.UUID
		gotFSID bool
	)

	for _, tag := range tags {
		switch {
		case strings.HasPrefix(tag, "ceph.osd_id="):
			value := strings.TrimPrefix(tag, "ceph.osd_id=")
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return -1, uuid.UUID{}, errkind.Wrap(errkind.StateInconsistency, err, "unparseable osd id tag %q", tag)
			}
			id = parsed
		case strings.HasPrefix(tag, "ceph.osd_fsid="):
			value := strings.TrimPrefix(tag, "ceph.osd_fsid=")
			parsed, err := uuid.Parse(value)
			if err != nil {
				return -1, uuid.UUID{}, errkind.Wrap(errkind.StateInconsistency, err, "unparseable osd fsid tag %q", tag)
			}
			fsid = parsed
			gotFSID = true
		}
	}

	if id < 0 || !gotFSID {
		return -1, uuid.UUID{}, errkind.New(errkind.StateInconsistency, "volume tags carry no osd id or fsid: %v", tags)
	}
	return id, fsid, nil
}
