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

// Package fstab reads and updates the persistent mount table.
package fstab

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

// DefaultPath is the system mount table.
const DefaultPath = "/etc/fstab"

// Entry is one line of the mount table.
type Entry struct {
	// Spec is the device specification, e.g. UUID=... or a /dev path
	Spec string
	// MountPoint is where the filesystem is mounted
	MountPoint string
	// VfsType is the filesystem type
	VfsType string
	// Options are the mount options
	Options []string
	// Dump is the dump(8) flag
	Dump bool
	// FsckOrder is the fsck pass number
	FsckOrder int
}

func (e Entry) String() string {
	dump := 0
	if e.Dump {
		dump = 1
	}
	options := strings.Join(e.Options, ",")
	if options == "" {
		options = "defaults"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d", e.Spec, e.MountPoint, e.VfsType, options, dump, e.FsckOrder)
}

// Read parses the mount table at the given path. Comments and blank lines
// are skipped.
func Read(path string) ([]Entry, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IOFailure, err, "failed to read %s", path)
	}

	entries := []Entry{}
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, errkind.New(errkind.ParseFailure, "malformed mount table line in %s: %q", path, line)
		}
		entry := Entry{
			Spec:       fields[0],
			MountPoint: fields[1],
			VfsType:    fields[2],
			Options:    strings.Split(fields[3], ","),
		}
		if len(fields) > 4 {
			entry.Dump = fields[4] == "1"
		}
		if len(fields) > 5 {
			order, err := strconv.Atoi(fields[5])
			if err != nil {
				return nil, errkind.Wrap(errkind.ParseFailure, err, "malformed fsck order in %s: %q", path, line)
			}
			entry.FsckOrder = order
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Add writes the entry into the mount table, replacing any existing line for
// the same mountpoint. The returned bool is true when a new line was added
// and false when an existing one was updated.
func Add(path string, entry Entry) (bool, error) {
	buf, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, errkind.Wrap(errkind.IOFailure, err, "failed to read %s", path)
	}

	lines := []string{}
	if len(buf) > 0 {
		lines = strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	}

	added := true
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && !strings.HasPrefix(fields[0], "#") && fields[1] == entry.MountPoint {
			lines[i] = entry.String()
			added = false
			break
		}
	}
	if added {
		lines = append(lines, entry.String())
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, errkind.Wrap(errkind.IOFailure, err, "failed to write %s", path)
	}
	return added, nil
}
