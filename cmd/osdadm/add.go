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
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Provisions a disk as a new osd",
	RunE:  runAdd,
}

var addOsdID int

func init() {
	addDeviceFlags(addCmd)
	addCmd.Flags().IntVar(&addOsdID, "osd-id", -1, "request a specific osd id instead of letting the cluster allocate one")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	agent, err := setupAgent(cmd)
	if err != nil {
		return err
	}
	defer agent.Shutdown()

	var requestedID *int
	if addOsdID >= 0 {
		requestedID = &addOsdID
	}
	return agent.AddDisk(cfg.device, requestedID, cfg.simulate)
}
