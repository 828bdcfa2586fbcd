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

// Package svc controls host services under either systemd or upstart.
package svc

import (
	"os"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/exec"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "svc")

// InitSystem identifies the host's active service manager.
type InitSystem int

const (
	InitUnknown InitSystem = iota
	InitSystemd
	InitUpstart
)

func (i InitSystem) String() string {
	switch i {
	case InitSystemd:
		return "systemd"
	case InitUpstart:
		return "upstart"
	}
	return "unknown"
}

// initProcComm is overridable for tests.
var initProcComm = "/proc/1/comm"

// DetectInitSystem inspects pid 1 to determine the active service manager.
func DetectInitSystem() (InitSystem, error) {
	buf, err := os.ReadFile(initProcComm)
	if err != nil {
		return InitUnknown, errkind.Wrap(errkind.IOFailure, err, "failed to inspect pid 1")
	}
	switch strings.TrimSpace(string(buf)) {
	case "systemd":
		return InitSystemd, nil
	case "init", "upstart":
		return InitUpstart, nil
	}
	return InitUnknown, nil
}

// Manager starts, stops, enables and disables host service units.
type Manager struct {
	executor exec.Executor
	init     InitSystem
}

// NewManager detects the init system and returns a manager for it. Detection
// trouble does not fail construction; unit operations error until a known
// init system is found, so callers that never touch services still work.
func NewManager(executor exec.Executor) *Manager {
	init, err := DetectInitSystem()
	if err != nil {
		logger.Warningf("init system detection failed: %v", err)
	}
	logger.Debugf("detected init system: %s", init)
	return &Manager{executor: executor, init: init}
}

// NewManagerWithInit returns a manager for a known init system.
func NewManagerWithInit(executor exec.Executor, init InitSystem) *Manager {
	return &Manager{executor: executor, init: init}
}

// InitSystem returns the init system the manager drives.
func (m *Manager) InitSystem() InitSystem {
	return m.init
}

// checkInit guards every unit operation against an undetected init system.
func (m *Manager) checkInit() error {
	if m.init == InitUnknown {
		return errkind.New(errkind.NotFound, "unknown init system, cannot manage services")
	}
	return nil
}

// Start starts the unit. Under upstart the unit string may carry arguments
// ("ceph-osd id=2") which are passed through to the start command.
func (m *Manager) Start(unit string) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	if m.init == InitSystemd {
		return m.systemctl("start", unit)
	}
	return m.upstart("start", unit)
}

// Stop stops the unit.
func (m *Manager) Stop(unit string) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	if m.init == InitSystemd {
		return m.systemctl("stop", unit)
	}
	return m.upstart("stop", unit)
}

// Enable marks the unit to start at boot. Upstart jobs are enabled by their
// conf files, so this is a no-op there.
func (m *Manager) Enable(unit string) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	if m.init == InitSystemd {
		return m.systemctl("enable", unit)
	}
	logger.Debugf("upstart jobs are boot-enabled by their job files, skipping enable of %s", unit)
	return nil
}

// Disable removes the unit from boot startup.
func (m *Manager) Disable(unit string) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	if m.init == InitSystemd {
		return m.systemctl("disable", unit)
	}
	logger.Debugf("upstart jobs cannot be disabled here, skipping disable of %s", unit)
	return nil
}

func (m *Manager) systemctl(action, unit string) error {
	if err := m.executor.ExecuteCommand("systemctl", action, unit); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "systemctl %s %s failed", action, unit)
	}
	return nil
}

func (m *Manager) upstart(action, unit string) error {
	args := strings.Fields(unit)
	if err := m.executor.ExecuteCommand(action, args...); err != nil {
		return errkind.Wrap(errkind.ExternalToolFailure, err, "%s %s failed", action, unit)
	}
	return nil
}
