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

// Package gpt enumerates and appends GUID partition table entries through
// sgdisk, and forces the kernel to reread a table after it changes.
package gpt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/exec"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "gpt")

// JournalTypeGUID is the GPT partition type for a ceph journal.
const JournalTypeGUID = "45B0969E-9B03-4F30-B4C6-B4B80CEFF106"

const sgdiskCmd = "sgdisk"

// Partition is a single GPT table entry.
type Partition struct {
	Index       int
	FirstSector uint64
	LastSector  uint64
	GUID        uuid.UUID
	TypeGUID    string
	Name        string
}

// Extent is a contiguous run of unallocated sectors.
type Extent struct {
	StartSector uint64
	Sectors     uint64
}

// Table is a read-only snapshot of a device's partition table.
type Table struct {
	Device           string
	LogicalBlockSize uint64
	FirstUsable      uint64
	LastUsable       uint64
	Partitions       []Partition
}

var (
	sectorSizeRe  = regexp.MustCompile(`(?:Logical sector size|Sector size \(logical\)):\s+(\d+)\s+bytes`)
	usableRe      = regexp.MustCompile(`First usable sector is (\d+), last usable sector is (\d+)`)
	partitionLine = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+(\d+)\s`)
	infoTypeRe    = regexp.MustCompile(`Partition GUID code:\s+([0-9A-Fa-f-]+)`)
	infoGUIDRe    = regexp.MustCompile(`Partition unique GUID:\s+([0-9A-Fa-f-]+)`)
	infoNameRe    = regexp.MustCompile(`Partition name:\s+'([^']*)'`)
)

// Open reads the partition table of a device.
func Open(executor exec.Executor, device string) (*Table, error) {
	output, err := executor.ExecuteCommandWithOutput(sgdiskCmd, "--print", device)
	if err != nil {
		return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to read partition table of %s", device)
	}

	table, err := parsePrint(device, output)
	if err != nil {
		return nil, err
	}

	for i := range table.Partitions {
		p := &table.Partitions[i]
		info, err := executor.ExecuteCommandWithOutput(sgdiskCmd, "--info="+strconv.Itoa(p.Index), device)
		if err != nil {
			return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to read partition %d of %s", p.Index, device)
		}
		if err := parseInfo(p, info); err != nil {
			return nil, err
		}
	}

	return table, nil
}

func parsePrint(device, output string) (*Table, error) {
	table := &Table{Device: device}

	m := sectorSizeRe.FindStringSubmatch(output)
	if m == nil {
		return nil, errkind.New(errkind.ParseFailure, "no logical sector size in sgdisk output for %s", device)
	}
	size, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || (size != 512 && size != 4096) {
		return nil, errkind.New(errkind.ParseFailure, "unexpected logical sector size %q on %s", m[1], device)
	}
	table.LogicalBlockSize = size

	if m := usableRe.FindStringSubmatch(output); m != nil {
		table.FirstUsable, _ = strconv.ParseUint(m[1], 10, 64)
		table.LastUsable, _ = strconv.ParseUint(m[2], 10, 64)
	} else {
		return nil, errkind.New(errkind.ParseFailure, "no usable sector range in sgdisk output for %s", device)
	}

	inTable := false
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Number") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		m := partitionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		first, _ := strconv.ParseUint(m[2], 10, 64)
		last, _ := strconv.ParseUint(m[3], 10, 64)
		table.Partitions = append(table.Partitions, Partition{Index: idx, FirstSector: first, LastSector: last})
	}

	sort.Slice(table.Partitions, func(i, j int) bool {
		return table.Partitions[i].FirstSector < table.Partitions[j].FirstSector
	})
	return table, nil
}

func parseInfo(p *Partition, output string) error {
	if m := infoTypeRe.FindStringSubmatch(output); m != nil {
		p.TypeGUID = strings.ToUpper(m[1])
	}
	m := infoGUIDRe.FindStringSubmatch(output)
	if m == nil {
		return errkind.New(errkind.ParseFailure, "no unique GUID reported for partition %d", p.Index)
	}
	guid, err := uuid.Parse(m[1])
	if err != nil {
		return errkind.Wrap(errkind.ParseFailure, err, "malformed GUID for partition %d", p.Index)
	}
	p.GUID = guid
	if m := infoNameRe.FindStringSubmatch(output); m != nil {
		p.Name = m[1]
	}
	return nil
}

// Partition returns the table entry with the given index.
func (t *Table) Partition(index int) (*Partition, bool) {
	for i := range t.Partitions {
		if t.Partitions[i].Index == index {
			return &t.Partitions[i], true
		}
	}
	return nil, false
}

// FreeExtents returns the unallocated sector runs between the usable range
// and the allocated partitions. Partitions are assumed non-overlapping.
func (t *Table) FreeExtents() []Extent {
	extents := []Extent{}
	cursor := t.FirstUsable
	for _, p := range t.Partitions {
		if p.FirstSector > cursor {
			extents = append(extents, Extent{StartSector: cursor, Sectors: p.FirstSector - cursor})
		}
		if p.LastSector+1 > cursor {
			cursor = p.LastSector + 1
		}
	}
	if cursor <= t.LastUsable {
		extents = append(extents, Extent{StartSector: cursor, Sectors: t.LastUsable - cursor + 1})
	}
	return extents
}

// LargestFreeBytes returns the size in bytes of the largest free extent.
func (t *Table) LargestFreeBytes() uint64 {
	var largest uint64
	for _, e := range t.FreeExtents() {
		if bytes := e.Sectors * t.LogicalBlockSize; bytes > largest {
			largest = bytes
		}
	}
	return largest
}

// AddPartition appends a partition of the given size and type to the device,
// refreshes the kernel partition cache, and re-reads the table to recover the
// newly assigned index and GUID.
func AddPartition(executor exec.Executor, device, name string, sizeBytes uint64, typeGUID string) (*Partition, error) {
	before, err := Open(executor, device)
	if err != nil {
		return nil, err
	}
	existing := map[int]struct{}{}
	for _, p := range before.Partitions {
		existing[p.Index] = struct{}{}
	}

	sectors := (sizeBytes + before.LogicalBlockSize - 1) / before.LogicalBlockSize
	args := []string{
		"--new=0:0:+" + strconv.FormatUint(sectors, 10),
		"--change-name=0:" + name,
		"--typecode=0:" + typeGUID,
		device,
	}
	logger.Infof("creating %d byte partition %q on %s", sizeBytes, name, device)
	if err := executor.ExecuteCommand(sgdiskCmd, args...); err != nil {
		return nil, errkind.Wrap(errkind.ExternalToolFailure, err, "failed to create partition on %s", device)
	}

	if err := RefreshPartitionCache(device); err != nil {
		return nil, err
	}
	if err := sys.SettleUdev(executor); err != nil {
		return nil, err
	}

	after, err := Open(executor, device)
	if err != nil {
		return nil, err
	}
	for i := range after.Partitions {
		if _, ok := existing[after.Partitions[i].Index]; !ok {
			return &after.Partitions[i], nil
		}
	}
	return nil, errors.Errorf("created a partition on %s but it did not appear in the table", device)
}
