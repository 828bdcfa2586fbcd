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
	"strings"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

// RemovalSafety is the three-valued outcome of the cluster health diagnosis.
type RemovalSafety int

const (
	// SafetyUnknown means the diagnosis could not decide. Treat as unsafe.
	SafetyUnknown RemovalSafety = iota
	// SafetySafe means every placement group is fully replicated and clean.
	SafetySafe
	// SafetyNonSafe means data would be at risk if an OSD were removed now.
	SafetyNonSafe
)

func (s RemovalSafety) String() string {
	switch s {
	case SafetySafe:
		return "safe"
	case SafetyNonSafe:
		return "non-safe"
	}
	return "unknown"
}

// states that indicate data is not fully replicated right now
var riskStates = []string{
	"degraded", "undersized", "recovering", "recovery_wait", "backfilling",
	"backfill_wait", "down", "incomplete", "stale", "peering",
}

// DiagnoseRemoval examines the cluster's placement group states to decide
// whether removing an OSD would endanger data.
func DiagnoseRemoval(conn Connection) (RemovalSafety, error) {
	buf, err := monCommand(conn, map[string]interface{}{
		"prefix": "pg stat",
		"format": "json",
	})
	if err != nil {
		return SafetyUnknown, err
	}

	states, total, err := parsePgStates(buf)
	if err != nil {
		return SafetyUnknown, err
	}
	if total == 0 {
		// no placement groups to diagnose, nothing to say either way
		return SafetyUnknown, nil
	}

	clean := 0
	for state, num := range states {
		for _, risk := range riskStates {
			if strings.Contains(state, risk) {
				return SafetyNonSafe, nil
			}
		}
		if strings.Contains(state, "active+clean") {
			clean += num
		}
	}
	if clean == total {
		return SafetySafe, nil
	}
	return SafetyUnknown, nil
}

// parsePgStates extracts the per-state placement group counts and the total
// count. The report nests them under pg_summary on newer releases and at the
// top level on older ones.
func parsePgStates(buf []byte) (map[string]int, int, error) {
	type pgCounts struct {
		NumPgByState []struct {
			Name string `json:"name"`
			Num  int    `json:"num"`
		} `json:"num_pg_by_state"`
		NumPgs int `json:"num_pgs"`
	}
	var report struct {
		pgCounts
		PgSummary *pgCounts `json:"pg_summary"`
	}
	if err := json.Unmarshal(buf, &report); err != nil {
		return nil, 0, errkind.Wrap(errkind.ParseFailure, err, "failed to unmarshal pg stat response %q", string(buf))
	}

	counts := report.pgCounts
	if report.PgSummary != nil {
		counts = *report.PgSummary
	}

	states := map[string]int{}
	for _, s := range counts.NumPgByState {
		states[s.Name] = s.Num
	}
	return states, counts.NumPgs, nil
}
