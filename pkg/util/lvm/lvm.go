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

// Package lvm drives the LVM2 command line tools to manage the volume
// groups and logical volumes backing OSD data.
package lvm

import (
	"strconv"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/exec"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "lvm")

// LVM is a handle to the host's volume manager.
type LVM struct {
	executor exec.Executor
}

// VolumeGroup is a named group of physical volumes.
type VolumeGroup struct {
	Name string

	lvm *LVM
}

// LogicalVolume is a single volume within a group.
type LogicalVolume struct {
	Name string
	UUID string

	vg *VolumeGroup
}

// New returns an LVM handle using the given executor.
func New(executor exec.Executor) *LVM {
	return &LVM{executor: executor}
}

// Scan asks the volume manager to rescan devices for LVM metadata.
func (l *LVM) Scan() error {
	if err := l.executor.ExecuteCommand("pvscan", "--cache"); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "pvscan failed")
	}
	return nil
}

// CreateVolumeGroup creates an empty volume group record. The group only
// becomes usable once a device is added with Extend.
func (l *LVM) CreateVolumeGroup(name string) (*VolumeGroup, error) {
	return &VolumeGroup{Name: name, lvm: l}, nil
}

// OpenVolumeGroup opens an existing volume group by name.
func (l *LVM) OpenVolumeGroup(name string) (*VolumeGroup, error) {
	if _, err := l.executor.ExecuteCommandWithOutput("vgs", "--noheadings", "-o", "vg_name", name); err != nil {
		return nil, errkind.Wrap(errkind.NotFound, err, "volume group %s not found", name)
	}
	return &VolumeGroup{Name: name, lvm: l}, nil
}

// VolumeGroupForDevice returns the name of the volume group whose physical
// volume is the given device, or a NotFound error when the device backs none.
func (l *LVM) VolumeGroupForDevice(device string) (string, error) {
	output, err := l.executor.ExecuteCommandWithOutput("pvs", "--noheadings", "-o", "vg_name", device)
	if err != nil {
		return "", errkind.Wrap(errkind.NotFound, err, "no volume group associated with block device %s", device)
	}
	name := strings.TrimSpace(output)
	if name == "" {
		return "", errkind.New(errkind.NotFound, "no volume group associated with block device %s", device)
	}
	return name, nil
}

// RemovePhysicalVolume deletes the LVM metadata from the device.
func (l *LVM) RemovePhysicalVolume(device string) error {
	if err := l.executor.ExecuteCommand("pvremove", "--force", "--yes", device); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to remove physical volume %s", device)
	}
	return nil
}

// Extend initializes the device as a physical volume and adds it to the
// group, creating the group on first extension.
func (vg *VolumeGroup) Extend(device string) error {
	if err := vg.lvm.executor.ExecuteCommand("pvcreate", device); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to initialize physical volume %s", device)
	}

	// vgextend fails when the group does not exist yet, in which case the
	// group is created with this device as its first member
	if _, err := vg.lvm.executor.ExecuteCommandWithOutput("vgs", "--noheadings", "-o", "vg_name", vg.Name); err != nil {
		if err := vg.lvm.executor.ExecuteCommand("vgcreate", vg.Name, device); err != nil {
			return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to create volume group %s on %s", vg.Name, device)
		}
		return nil
	}
	if err := vg.lvm.executor.ExecuteCommand("vgextend", vg.Name, device); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to extend volume group %s with %s", vg.Name, device)
	}
	return nil
}

// Write verifies the group metadata is visible on disk.
func (vg *VolumeGroup) Write() error {
	if _, err := vg.lvm.executor.ExecuteCommandWithOutput("vgs", "--noheadings", "-o", "vg_name", vg.Name); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "volume group %s was not committed", vg.Name)
	}
	return nil
}

// Size returns the group capacity in bytes.
func (vg *VolumeGroup) Size() (uint64, error) {
	output, err := vg.lvm.executor.ExecuteCommandWithOutput("vgs", "--noheadings", "--units", "b", "--nosuffix", "-o", "vg_size", vg.Name)
	if err != nil {
		return 0, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to read size of volume group %s", vg.Name)
	}
	size, err := strconv.ParseUint(strings.TrimSpace(output), 10, 64)
	if err != nil {
		return 0, errkind.Wrap(errkind.ParseFailure, err, "malformed volume group size %q for %s", output, vg.Name)
	}
	return size, nil
}

// CreateLogicalVolume creates a linear volume of the given size in bytes.
func (vg *VolumeGroup) CreateLogicalVolume(name string, sizeBytes uint64) (*LogicalVolume, error) {
	if err := vg.lvm.executor.ExecuteCommand("lvcreate", "--yes",
		"--size", strconv.FormatUint(sizeBytes, 10)+"b", "--name", name, vg.Name); err != nil {
		return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to create logical volume %s in %s", name, vg.Name)
	}
	lv := &LogicalVolume{Name: name, vg: vg}
	if uuid, err := lv.fetchUUID(); err == nil {
		lv.UUID = uuid
	} else {
		return nil, err
	}
	return lv, nil
}

// ListLogicalVolumes enumerates the volumes in the group.
func (vg *VolumeGroup) ListLogicalVolumes() ([]*LogicalVolume, error) {
	output, err := vg.lvm.executor.ExecuteCommandWithOutput("lvs", "--noheadings", "--separator", ";", "-o", "lv_name,lv_uuid", vg.Name)
	if err != nil {
		return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to list volumes of group %s", vg.Name)
	}

	lvs := []*LogicalVolume{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ";", 2)
		lv := &LogicalVolume{Name: strings.TrimSpace(fields[0]), vg: vg}
		if len(fields) > 1 {
			lv.UUID = strings.TrimSpace(fields[1])
		}
		lvs = append(lvs, lv)
	}
	return lvs, nil
}

// Remove deletes the (now empty) volume group.
func (vg *VolumeGroup) Remove() error {
	if err := vg.lvm.executor.ExecuteCommand("vgremove", "--force", vg.Name); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to remove volume group %s", vg.Name)
	}
	return nil
}

func (lv *LogicalVolume) qualified() string {
	return lv.vg.Name + "/" + lv.Name
}

func (lv *LogicalVolume) fetchUUID() (string, error) {
	output, err := lv.vg.lvm.executor.ExecuteCommandWithOutput("lvs", "--noheadings", "-o", "lv_uuid", lv.qualified())
	if err != nil {
		return "", errkind.Wrap(errkind.ExternalToolFailure, err, "failed to read uuid of %s", lv.qualified())
	}
	return strings.TrimSpace(output), nil
}

// Tags returns the tags attached to the volume.
func (lv *LogicalVolume) Tags() ([]string, error) {
	output, err := lv.vg.lvm.executor.ExecuteCommandWithOutput("lvs", "--noheadings", "-o", "lv_tags", lv.qualified())
	if err != nil {
		return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to read tags of %s", lv.qualified())
	}
	raw := strings.TrimSpace(output)
	if raw == "" {
		return []string{}, nil
	}
	return strings.Split(raw, ","), nil
}

// AddTag attaches one tag to the volume.
func (lv *LogicalVolume) AddTag(tag string) error {
	if err := lv.vg.lvm.executor.ExecuteCommand("lvchange", "--addtag", tag, lv.qualified()); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to tag %s with %q", lv.qualified(), tag)
	}
	return nil
}

// Deactivate takes the volume offline.
func (lv *LogicalVolume) Deactivate() error {
	if err := lv.vg.lvm.executor.ExecuteCommand("lvchange", "-an", lv.qualified()); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to deactivate %s", lv.qualified())
	}
	return nil
}

// Remove deletes the volume.
func (lv *LogicalVolume) Remove() error {
	if err := lv.vg.lvm.executor.ExecuteCommand("lvremove", "--force", lv.qualified()); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "failed to remove %s", lv.qualified())
	}
	return nil
}

// DevicePath returns the /dev path of the volume's device-mapper node.
func (lv *LogicalVolume) DevicePath() string {
	return "/dev/" + lv.vg.Name + "/" + lv.Name
}
