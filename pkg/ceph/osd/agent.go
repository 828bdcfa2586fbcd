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

// Package osd provisions and decommissions physical disks as OSDs in the
// cluster. Adding a disk orders a journal selection, cluster id allocation,
// volume provisioning and host service startup into a single workflow;
// removal tears the same state down, driven by the identity recorded in the
// data volume's tags.
package osd

import (
	"fmt"
	"strconv"

	"github.com/coreos/pkg/capnslog"

	"github.com/osdadm/osdadm/pkg/ceph/client"
	"github.com/osdadm/osdadm/pkg/clusterd"
	"github.com/osdadm/osdadm/pkg/util/errkind"
	"github.com/osdadm/osdadm/pkg/util/svc"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "osd")

// layout is the on-disk generation of an OSD's data, chosen once from the
// cluster's reported version.
type layout int

const (
	layoutFilestore layout = iota
	layoutBluestore
)

func (l layout) String() string {
	if l == layoutBluestore {
		return "bluestore"
	}
	return "filestore"
}

// Agent orchestrates the OSD lifecycle on this host. The cluster connection
// is held for the agent's whole lifetime; everything else is created and
// dropped within a single call. Calls must be serialized by the caller.
type Agent struct {
	context  *clusterd.Context
	config   *Config
	conn     client.Connection
	version  client.CephVersion
	layout   layout
	services *svc.Manager

	// plan records the mutating steps a simulate run would have performed,
	// in order, for dry-run inspection
	plan []string
}

// NewAgent loads the backend config, connects to the cluster and queries the
// engine version once to pick the layout generation.
func NewAgent(context *clusterd.Context) (*Agent, error) {
	config, err := LoadConfig(context.ConfigDir)
	if err != nil {
		return nil, err
	}

	conn, err := client.ConnectToCluster(config.UserID, config.ConfigFile)
	if err != nil {
		return nil, err
	}

	version, err := client.Version(conn)
	if err != nil {
		conn.Shutdown()
		return nil, err
	}

	return newAgent(context, config, conn, version, svc.NewManager(context.Executor)), nil
}

func newAgent(context *clusterd.Context, config *Config, conn client.Connection, version client.CephVersion, services *svc.Manager) *Agent {
	l := layoutFilestore
	if version.IsAtLeast(client.Luminous) {
		l = layoutBluestore
	}
	logger.Infof("cluster runs %s, using the %s layout", version, l)
	return &Agent{
		context:  context,
		config:   config,
		conn:     conn,
		version:  version,
		layout:   l,
		services: services,
	}
}

// Shutdown releases the cluster connection.
func (a *Agent) Shutdown() {
	a.conn.Shutdown()
}

// AddDisk provisions the device as a new OSD. A nil id lets the cluster
// allocate one. With simulate set, every mutating step is recorded and
// logged instead of performed.
func (a *Agent) AddDisk(device string, requestedID *int, simulate bool) error {
	a.plan = nil
	logger.Infof("adding %s as a %s osd (simulate=%t)", device, a.layout, simulate)
	if a.layout == layoutBluestore {
		return a.addBluestore(device, requestedID, simulate)
	}
	return a.addFilestore(device, requestedID, simulate)
}

// RemoveDisk decommissions the OSD backed by the device, removing it from
// the cluster and tearing down its local state.
func (a *Agent) RemoveDisk(device string, simulate bool) error {
	a.plan = nil
	logger.Infof("removing the osd on %s (simulate=%t)", device, simulate)
	return a.remove(device, simulate)
}

// SafeToRemove reports whether an OSD can be removed without risking data,
// based on the cluster's placement group health. An indeterminate diagnosis
// counts as not safe.
func (a *Agent) SafeToRemove(device string) (bool, error) {
	safety, err := client.DiagnoseRemoval(a.conn)
	if err != nil {
		return false, err
	}
	logger.Infof("removal of %s is %s", device, safety)
	return safety == client.SafetySafe, nil
}

// simulateStep records a mutating step a dry run skipped.
func (a *Agent) simulateStep(format string, args ...interface{}) {
	step := fmt.Sprintf(format, args...)
	a.plan = append(a.plan, step)
	logger.Infof("simulate: would %s", step)
}

// journalSizeBytes reads the cluster's configured journal size, reported in
// megabytes, and converts it to bytes.
func (a *Agent) journalSizeBytes() (uint64, error) {
	value, err := client.ConfigGet(a.conn, "osd", "osd_journal_size")
	if err != nil {
		return 0, err
	}
	mb, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errkind.Wrap(errkind.ParseFailure, err, "malformed osd_journal_size %q", value)
	}
	return mb * 1024 * 1024, nil
}

// osdWeight computes the placement weight from the backing capacity.
func osdWeight(sizeBytes uint64) float64 {
	return float64(sizeBytes/(1<<30)) * 0.001
}

// osdUnit names the OSD's service unit for the active init system.
func (a *Agent) osdUnit(osdID int) string {
	if a.services.InitSystem() == svc.InitUpstart {
		return fmt.Sprintf("ceph-osd id=%d", osdID)
	}
	return fmt.Sprintf("ceph-osd@%d", osdID)
}
