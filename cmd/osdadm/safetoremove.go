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
	"fmt"

	"github.com/spf13/cobra"
)

var safeToRemoveCmd = &cobra.Command{
	Use:   "safe-to-remove",
	Short: "Reports whether an osd can be removed without risking data",
	RunE:  runSafeToRemove,
}

func init() {
	addDeviceFlags(safeToRemoveCmd)
	rootCmd.AddCommand(safeToRemoveCmd)
}

func runSafeToRemove(cmd *cobra.Command, args []string) error {
	agent, err := setupAgent(cmd)
	if err != nil {
		return err
	}
	defer agent.Shutdown()

	safe, err := agent.SafeToRemove(cfg.device)
	if err != nil {
		return err
	}
	if safe {
		fmt.Println("safe")
	} else {
		fmt.Println("not safe")
	}
	return nil
}
