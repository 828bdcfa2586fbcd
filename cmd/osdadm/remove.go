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

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Decommissions the osd backed by a disk",
	RunE:  runRemove,
}

func init() {
	addDeviceFlags(removeCmd)
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	agent, err := setupAgent(cmd)
	if err != nil {
		return err
	}
	defer agent.Shutdown()

	return agent.RemoveDisk(cfg.device, cfg.simulate)
}
