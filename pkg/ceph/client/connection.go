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

// Package client talks to the ceph cluster control plane over librados.
package client

import (
	"github.com/ceph/go-ceph/rados"
	"github.com/coreos/pkg/capnslog"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

var logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "cephclient")

// Connection is the interface for a connection to the ceph cluster.
type Connection interface {
	Connect() error
	Shutdown()
	ReadConfigFile(path string) error
	MonCommand(args []byte) (buffer []byte, info string, err error)
	GetFSID() (string, error)
	GetConfigOption(name string) (string, error)
}

type radosConnection struct {
	conn *rados.Conn
}

// NewConnection creates an unconnected handle for the given cluster user.
func NewConnection(user string) (Connection, error) {
	conn, err := rados.NewConnWithUser(user)
	if err != nil {
		return nil, errkind.Wrap(errkind.ConnectionFailure, err, "failed to create rados connection for user %s", user)
	}
	return &radosConnection{conn: conn}, nil
}

func (r *radosConnection) Connect() error {
	if err := r.conn.Connect(); err != nil {
		return errkind.Wrap(errkind.ConnectionFailure, err, "failed to connect to the cluster")
	}
	return nil
}

func (r *radosConnection) Shutdown() {
	r.conn.Shutdown()
}

func (r *radosConnection) ReadConfigFile(path string) error {
	if err := r.conn.ReadConfigFile(path); err != nil {
		return errkind.Wrap(errkind.ConfigMissing, err, "failed to read cluster config file %s", path)
	}
	return nil
}

func (r *radosConnection) MonCommand(args []byte) ([]byte, string, error) {
	return r.conn.MonCommand(args)
}

func (r *radosConnection) GetFSID() (string, error) {
	fsid, err := r.conn.GetFSID()
	if err != nil {
		return "", errkind.Wrap(errkind.ConnectionFailure, err, "failed to read the cluster fsid")
	}
	return fsid, nil
}

func (r *radosConnection) GetConfigOption(name string) (string, error) {
	value, err := r.conn.GetConfigOption(name)
	if err != nil {
		return "", errkind.Wrap(errkind.NotFound, err, "config option %s not found", name)
	}
	return value, nil
}

// ConnectToCluster opens and connects a handle using the given cluster
// config file and user.
func ConnectToCluster(user, configFile string) (Connection, error) {
	conn, err := NewConnection(user)
	if err != nil {
		return nil, err
	}
	if err := conn.ReadConfigFile(configFile); err != nil {
		return nil, err
	}
	logger.Infof("connecting to the cluster as %s with config %s", user, configFile)
	if err := conn.Connect(); err != nil {
		return nil, err
	}
	return conn, nil
}
