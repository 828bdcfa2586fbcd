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
package clusterd

import (
	"github.com/osdadm/osdadm/pkg/util/exec"
)

const (
	// DefaultOsdRoot is the directory under which every OSD on the host keeps
	// its data directory (e.g. /var/lib/ceph/osd/ceph-3).
	DefaultOsdRoot = "/var/lib/ceph/osd"
)

// Context holds the process-wide handles threaded through every component.
type Context struct {
	// Executor runs external processes on the host
	Executor exec.Executor

	// ConfigDir is the directory holding the backend configuration file
	ConfigDir string

	// OsdRoot is the directory containing the per-OSD data directories
	OsdRoot string
}

// NewContext creates a context with the default executor and OSD root.
func NewContext(configDir string) *Context {
	return &Context{
		Executor:  &exec.CommandExecutor{},
		ConfigDir: configDir,
		OsdRoot:   DefaultOsdRoot,
	}
}
