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
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

// serviceAccount is the system account the storage engine daemons run as.
const serviceAccount = "ceph"

const (
	fsidFileName    = "fsid"
	monmapFileName  = "activate.monmap"
	keyringFileName = "keyring"
	typeFileName    = "type"
	whoamiFileName  = "whoami"
)

// osdDataDir is the OSD's local data directory, e.g. /var/lib/ceph/osd/ceph-3.
func osdDataDir(osdRoot string, osdID int) string {
	return filepath.Join(osdRoot, fmt.Sprintf("%s-%d", clusterName, osdID))
}

// writeFSIDFile persists the OSD uuid marker into the data directory.
func writeFSIDFile(dir string, osdFSID uuid.UUID) error {
	path := filepath.Join(dir, fsidFileName)
	if err := os.WriteFile(path, []byte(osdFSID.String()+"\n"), 0644); err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "failed to write %s", path)
	}
	return nil
}

// writeMonmap persists the opaque monitor map bytes as the activation
// artifact the engine's mkfs consumes.
func writeMonmap(dir string, monmap []byte) error {
	path := filepath.Join(dir, monmapFileName)
	if err := os.WriteFile(path, monmap, 0644); err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "failed to write %s", path)
	}
	return nil
}

// writeKeyring persists the OSD's auth key in the engine's keyring format.
func writeKeyring(dir string, osdID int, key string) error {
	path := filepath.Join(dir, keyringFileName)
	content := fmt.Sprintf("[osd.%d]\n\tkey = %s\n", osdID, key)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "failed to write %s", path)
	}
	return nil
}

// lookupServiceAccount resolves the uid/gid of the engine's system account.
func lookupServiceAccount() (int, int, error) {
	account, err := user.Lookup(serviceAccount)
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.NotFound, err, "service account %q not found", serviceAccount)
	}
	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.ParseFailure, err, "malformed uid %q for %s", account.Uid, serviceAccount)
	}
	gid, err := strconv.Atoi(account.Gid)
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.ParseFailure, err, "malformed gid %q for %s", account.Gid, serviceAccount)
	}
	return uid, gid, nil
}

// chownRecursive hands every artifact under path to the service account.
// Symlinks are re-owned without following them.
func chownRecursive(path string, uid, gid int) error {
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(p, uid, gid)
	})
	if err != nil {
		return errkind.Wrap(errkind.IOFailure, err, "failed to chown %s to %s", path, serviceAccount)
	}
	return nil
}
