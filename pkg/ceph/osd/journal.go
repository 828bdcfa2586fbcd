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
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/exec"
	"github.com/osdadm/osdadm/pkg/util/gpt"
	"github.com/osdadm/osdadm/pkg/util/sys"
)

const journalPartitionName = "ceph journal"

// JournalDevice is a candidate or chosen journal location. Once returned by
// the selector the partition index and GUID are resolved; config only
// carries the device path and an optional preferred partition.
type JournalDevice struct {
	// Device is the whole-disk path, e.g. /dev/sdd
	Device string
	// Partition is the 1-based partition index, nil when unresolved
	Partition *int
	// PartUUID is the partition's unique GUID, nil when unresolved
	PartUUID *uuid.UUID
	// NumPartitions is the cached partition count used for candidate ordering
	NumPartitions *int
}

// String renders the journal as the partition device node, e.g. /dev/sdd1.
func (j *JournalDevice) String() string {
	if j.Partition == nil {
		return j.Device
	}
	return j.Device + strconv.Itoa(*j.Partition)
}

// selectJournal picks at most one journal from the configured candidates.
// Candidates are considered in ascending order of their existing partition
// count so journals spread across devices; a candidate whose largest free
// extent cannot hold sizeBytes is skipped. A nil journal with a nil error
// means no candidate qualified, which is a valid outcome.
func selectJournal(executor exec.Executor, candidates []JournalCandidate, sizeBytes uint64, osdRoot string, simulate bool) (*JournalDevice, error) {
	type scored struct {
		journal *JournalDevice
		table   *gpt.Table
	}

	devices := []scored{}
	for _, c := range candidates {
		table, err := gpt.Open(executor, c.Device)
		if err != nil {
			// a candidate that cannot be probed is unusable, not fatal
			logger.Errorf("skipping journal candidate %s: %v", c.Device, err)
			continue
		}
		count := len(table.Partitions)
		devices = append(devices, scored{
			journal: &JournalDevice{Device: c.Device, Partition: c.PartitionID, NumPartitions: &count},
			table:   table,
		})
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return *devices[i].journal.NumPartitions < *devices[j].journal.NumPartitions
	})

	for _, d := range devices {
		if free := d.table.LargestFreeBytes(); free < sizeBytes {
			logger.Debugf("journal candidate %s has only %d free bytes, need %d", d.journal.Device, free, sizeBytes)
			continue
		}
		return evaluateJournal(executor, d.journal, d.table, sizeBytes, osdRoot, simulate)
	}

	logger.Infof("no journal candidate with %d free bytes, provisioning without a journal", sizeBytes)
	return nil, nil
}

// evaluateJournal resolves the chosen candidate to a concrete partition. A
// preferred partition is reused only when no other OSD's journal symlink
// already resolves to it; otherwise, and for device-only candidates, a new
// partition is created.
func evaluateJournal(executor exec.Executor, journal *JournalDevice, table *gpt.Table, sizeBytes uint64, osdRoot string, simulate bool) (*JournalDevice, error) {
	if journal.Partition != nil {
		part, ok := table.Partition(*journal.Partition)
		if !ok {
			return nil, errkind.New(errkind.NotFound, "journal partition %d not found on %s", *journal.Partition, journal.Device)
		}

		inUse, err := partitionInUse(executor, osdRoot, part.GUID)
		if err != nil {
			return nil, err
		}
		if !inUse {
			guid := part.GUID
			journal.PartUUID = &guid
			logger.Infof("reusing journal partition %s", journal)
			return journal, nil
		}
		logger.Infof("journal partition %s is claimed by another osd, creating a new one", journal)
	}

	if simulate {
		logger.Infof("simulate: would create a %d byte journal partition on %s", sizeBytes, journal.Device)
		return &JournalDevice{Device: journal.Device}, nil
	}

	part, err := gpt.AddPartition(executor, journal.Device, journalPartitionName, sizeBytes, gpt.JournalTypeGUID)
	if err != nil {
		return nil, err
	}
	guid := part.GUID
	index := part.Index
	return &JournalDevice{Device: journal.Device, Partition: &index, PartUUID: &guid}, nil
}

// partitionInUse scans every OSD data directory under osdRoot for a journal
// or write-ahead-log symlink resolving to a partition with the given GUID.
// A journal that cannot be probed may be the partition in question, so a
// probe failure counts as a claim.
func partitionInUse(executor exec.Executor, osdRoot string, guid uuid.UUID) (bool, error) {
	entries, err := os.ReadDir(osdRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errkind.Wrap(errkind.IOFailure, err, "failed to scan osd root %s", osdRoot)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, link := range []string{"journal", "block.wal"} {
			target, err := filepath.EvalSymlinks(filepath.Join(osdRoot, entry.Name(), link))
			if err != nil {
				continue
			}
			id, err := sys.GetPartitionUUID(executor, target)
			if err != nil {
				logger.Errorf("cannot probe journal %s of %s, treating the partition as claimed: %v", target, entry.Name(), err)
				return true, nil
			}
			if id == guid {
				logger.Debugf("partition %s is claimed by %s", guid, entry.Name())
				return true, nil
			}
		}
	}
	return false, nil
}
