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
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

const configFileName = "ceph.json"

// JournalCandidate is one configured journal location. When PartitionID is
// set the named partition is preferred, subject to it not being claimed by
// another OSD already.
type JournalCandidate struct {
	Device      string `json:"device"`
	PartitionID *int   `json:"partition_id,omitempty"`
}

// Config is the backend configuration loaded from ceph.json.
type Config struct {
	// ConfigFile is the cluster config passed to the rados connection
	ConfigFile string `json:"config_file"`
	// UserID is the cluster user to connect as
	UserID string `json:"user_id"`
	// JournalDevices are the candidate journal locations for new OSDs
	JournalDevices []JournalCandidate `json:"journal_devices,omitempty"`
}

// LoadConfig reads ceph.json from the config dir, falling back to the
// invoking user's ~/.config directory.
func LoadConfig(configDir string) (*Config, error) {
	paths := []string{filepath.Join(configDir, configFileName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", configFileName))
	}

	for _, path := range paths {
		buf, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errkind.Wrap(errkind.IOFailure, err, "failed to read %s", path)
		}

		config := &Config{}
		if err := json.Unmarshal(buf, config); err != nil {
			return nil, errkind.Wrap(errkind.ParseFailure, err, "malformed config file %s", path)
		}
		if config.ConfigFile == "" {
			config.ConfigFile = "/etc/ceph/ceph.conf"
		}
		if config.UserID == "" {
			config.UserID = "admin"
		}
		logger.Debugf("loaded config from %s: user=%s journals=%d", path, config.UserID, len(config.JournalDevices))
		return config, nil
	}

	return nil, errkind.New(errkind.ConfigMissing, "no %s found in %s or ~/.config", configFileName, configDir)
}
