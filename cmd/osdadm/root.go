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
package main

import (
	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"

	"github.com/osdadm/osdadm/pkg/ceph/osd"
	"github.com/osdadm/osdadm/pkg/clusterd"
	"github.com/osdadm/osdadm/pkg/util"
	"github.com/osdadm/osdadm/pkg/util/flags"
)

var rootCmd = &cobra.Command{
	Use:   "osdadm",
	Short: "osdadm provisions and decommissions osd disks on this host",
}

var (
	logger = capnslog.NewPackageLogger("github.com/osdadm/osdadm", "osdadm")

	cfg struct {
		configDir string
		logLevel  string
		device    string
		simulate  bool
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfg.configDir, "config-dir", "/etc/osdadm", "directory holding ceph.json")
	rootCmd.PersistentFlags().StringVar(&cfg.logLevel, "log-level", "INFO", "logging level for verbosity (ERROR, WARNING, INFO, DEBUG)")
}

// addDeviceFlags registers the flags every disk subcommand shares.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.device, "device", "", "the disk to operate on, e.g. /dev/sdb")
	cmd.Flags().BoolVar(&cfg.simulate, "simulate", false, "log the plan without changing anything")
}

// setupAgent applies global settings and connects the lifecycle agent.
func setupAgent(cmd *cobra.Command) (*osd.Agent, error) {
	util.SetGlobalLogLevel(cfg.logLevel, logger)
	flags.SetFlagsFromEnv(cmd.Flags(), "OSDADM")

	if err := flags.VerifyRequiredFlags(cmd, []string{"device"}); err != nil {
		return nil, err
	}

	context := clusterd.NewContext(cfg.configDir)
	return osd.NewAgent(context)
}
