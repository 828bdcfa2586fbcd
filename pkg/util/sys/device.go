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

// Package sys probes, formats, mounts and erases block devices by driving
// the standard host tooling (lsblk, blkid, mkfs, mount, wipefs, udevadm).
package sys

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/exec"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "sys")

// MediaType classifies the physical media backing a device.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaRotational
	MediaSolidState
	MediaNVMe
)

func (m MediaType) String() string {
	switch m {
	case MediaRotational:
		return "rotational"
	case MediaSolidState:
		return "solid-state"
	case MediaNVMe:
		return "nvme"
	}
	return "unknown"
}

// Device holds the probed properties of a block device.
type Device struct {
	// Path is the /dev path the device was probed at
	Path string
	// FSType is the filesystem found on the device, empty when unformatted
	FSType string
	// FSUUID is the filesystem UUID, nil when the device carries none
	FSUUID *uuid.UUID
	// Size is the device capacity in bytes
	Size uint64
	// Media is the physical media classification
	Media MediaType
}

// FilesystemSpec describes how to format a device.
type FilesystemSpec struct {
	Type      string
	AgCount   int
	InodeSize int
	Force     bool
}

// GetDeviceInfo probes a block device with lsblk and blkid.
func GetDeviceInfo(executor exec.Executor, devicePath string) (*Device, error) {
	output, err := executor.ExecuteCommandWithOutput("lsblk", devicePath,
		"--bytes", "--nodeps", "--pairs", "--output", "SIZE,ROTA,TYPE,NAME")
	if err != nil {
		return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to probe device %s", devicePath)
	}
	props := parseKeyValuePairString(output)

	dev := &Device{Path: devicePath}
	if val, ok := props["SIZE"]; ok {
		if size, err := strconv.ParseUint(val, 10, 64); err == nil {
			dev.Size = size
		}
	}
	dev.Media = mediaTypeFromProps(props)

	// a missing filesystem is not an error, blkid simply has nothing to say
	if fsType, err := blkidValue(executor, devicePath, "TYPE"); err == nil {
		dev.FSType = fsType
	}
	if raw, err := blkidValue(executor, devicePath, "UUID"); err == nil && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errkind.Wrap(errkind.ParseFailure, err, "malformed filesystem uuid %q on %s", raw, devicePath)
		}
		dev.FSUUID = &id
	}

	logger.Debugf("probed %s: size=%d media=%s fstype=%q", devicePath, dev.Size, dev.Media, dev.FSType)
	return dev, nil
}

func mediaTypeFromProps(props map[string]string) MediaType {
	if name, ok := props["NAME"]; ok && strings.HasPrefix(name, "nvme") {
		return MediaNVMe
	}
	switch props["ROTA"] {
	case "1":
		return MediaRotational
	case "0":
		return MediaSolidState
	}
	return MediaUnknown
}

// GetPartitionUUID reads the GPT partition GUID of a partition device node.
func GetPartitionUUID(executor exec.Executor, partitionPath string) (uuid.UUID, error) {
	raw, err := blkidValue(executor, partitionPath, "PARTUUID")
	if err != nil {
		return uuid.UUID{}, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to probe partition uuid of %s", partitionPath)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errkind.Wrap(errkind.ParseFailure, err, "malformed partition uuid %q on %s", raw, partitionPath)
	}
	return id, nil
}

func blkidValue(executor exec.Executor, devicePath, field string) (string, error) {
	return executor.ExecuteCommandWithOutput("blkid", "-o", "value", "-s", field, devicePath)
}

// FormatDevice creates a filesystem on the device according to the spec.
func FormatDevice(executor exec.Executor, devicePath string, spec FilesystemSpec) error {
	if spec.Type != "xfs" {
		return errors.Errorf("unsupported filesystem type %q for %s", spec.Type, devicePath)
	}
	args := []string{}
	if spec.Force {
		args = append(args, "-f")
	}
	if spec.InodeSize > 0 {
		args = append(args, "-i", "size="+strconv.Itoa(spec.InodeSize))
	}
	if spec.AgCount > 0 {
		args = append(args, "-d", "agcount="+strconv.Itoa(spec.AgCount))
	}
	args = append(args, devicePath)
	if err := executor.ExecuteCommand("mkfs.xfs", args...); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to format %s", devicePath)
	}
	return nil
}

// MountDevice mounts a probed device at the target directory, preferring the
// stable by-uuid path when the filesystem has one.
func MountDevice(executor exec.Executor, info *Device, target string) error {
	source := info.Path
	if info.FSUUID != nil {
		source = filepath.Join("/dev/disk/by-uuid", info.FSUUID.String())
	}
	if err := executor.ExecuteCommand("mount", source, target); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to mount %s at %s", source, target)
	}
	return nil
}

// UnmountDevice unmounts the filesystem mounted at the target directory.
func UnmountDevice(executor exec.Executor, target string) error {
	if err := executor.ExecuteCommand("umount", target); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to unmount %s", target)
	}
	return nil
}

// GetDeviceMountPoint returns where the device is mounted, if it is.
func GetDeviceMountPoint(executor exec.Executor, devicePath string) (string, bool, error) {
	output, err := executor.ExecuteCommandWithOutput("findmnt", "-rno", "TARGET", devicePath)
	if err != nil {
		// findmnt exits 1 when the device is simply not mounted
		var cmdErr *exec.CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitStatus == 1 {
			return "", false, nil
		}
		return "", false, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to find mountpoint of %s", devicePath)
	}
	mountPoint := strings.TrimSpace(strings.SplitN(output, "\n", 2)[0])
	if mountPoint == "" {
		return "", false, nil
	}
	return mountPoint, true, nil
}

// WipeDevice removes all filesystem and partition-table signatures from the
// device.
func WipeDevice(executor exec.Executor, devicePath string) error {
	if err := executor.ExecuteCommand("wipefs", "--all", "--force", devicePath); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to wipe %s", devicePath)
	}
	return nil
}

// SettleUdev waits for udev to finish processing queued device events.
func SettleUdev(executor exec.Executor) error {
	if err := executor.ExecuteCommand("udevadm", "settle"); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "udevadm settle failed")
	}
	return nil
}

// parseKeyValuePairString parses `KEY="value" KEY2="value2"` output such as
// lsblk --pairs into a map.
func parseKeyValuePairString(propsRaw string) map[string]string {
	props := strings.Split(propsRaw, " ")
	propMap := make(map[string]string, len(props))

	for _, kvpRaw := range props {
		kvp := strings.Split(kvpRaw, "=")
		if len(kvp) == 2 {
			propMap[kvp[0]] = strings.Replace(kvp[1], `"`, "", -1)
		}
	}

	return propMap
}
