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
package client

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

// CephVersion is the storage engine's reported release.
type CephVersion struct {
	Major int
	Minor int
	Patch int
}

// Luminous introduced the logical-volume-backed OSD layout.
var Luminous = CephVersion{Major: 12}

var versionPattern = regexp.MustCompile(`ceph version (\d+)\.(\d+)\.(\d+)`)

func (v CephVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsAtLeast reports whether v is the same release as other or newer.
func (v CephVersion) IsAtLeast(other CephVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch >= other.Patch
}

// ParseCephVersion extracts the release numbers from a reported version
// string such as "ceph version 12.2.13 (584a2...) luminous (stable)".
func ParseCephVersion(raw string) (CephVersion, error) {
	m := versionPattern.FindStringSubmatch(raw)
	if m == nil {
		return CephVersion{}, errkind.New(errkind.ParseFailure, "malformed ceph version string %q", raw)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return CephVersion{Major: major, Minor: minor, Patch: patch}, nil
}

// Version reports the cluster's storage engine version.
func Version(conn Connection) (CephVersion, error) {
	buf, err := monCommand(conn, map[string]interface{}{
		"prefix": "version",
		"format": "json",
	})
	if err != nil {
		return CephVersion{}, err
	}

	var resp struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(buf, &resp); err != nil {
		return CephVersion{}, errkind.Wrap(errkind.ParseFailure, err, "failed to unmarshal version response %q", string(buf))
	}
	return ParseCephVersion(resp.Version)
}
