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
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/osdadm/osdadm/pkg/util/errkind"
)

func monCommand(conn Connection, cmd map[string]interface{}) ([]byte, error) {
	prefix, _ := cmd["prefix"].(string)
	command, err := json.Marshal(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "command %q marshal failed", prefix)
	}
	buf, info, err := conn.MonCommand(command)
	if err != nil {
		return nil, errors.Wrapf(err, "mon_command %q failed. info: %s", prefix, info)
	}
	return buf, nil
}

// CreateOSD allocates a cluster-wide OSD id for the given OSD uuid. A
// specific id may be requested.
func CreateOSD(conn Connection, osdUUID uuid.UUID, requestedID *int) (int, error) {
	cmd := map[string]interface{}{
		"prefix": "osd create",
		"format": "json",
		"uuid":   osdUUID.String(),
	}
	if requestedID != nil {
		cmd["id"] = *requestedID
	}
	buf, err := monCommand(conn, cmd)
	if err != nil {
		return 0, err
	}

	var resp struct {
		OsdID int `json:"osdid"`
	}
	if err := json.Unmarshal(buf, &resp); err != nil {
		return 0, errkind.Wrap(errkind.ParseFailure, err, "failed to unmarshal osd create response %q", string(buf))
	}
	return resp.OsdID, nil
}

// GetMonMap fetches the current monitor membership map as opaque bytes.
func GetMonMap(conn Connection) ([]byte, error) {
	return monCommand(conn, map[string]interface{}{"prefix": "mon getmap"})
}

// AuthGetOrCreate registers an auth entity for the OSD id and returns its
// key material.
func AuthGetOrCreate(conn Connection, osdID int) (string, error) {
	entity := fmt.Sprintf("osd.%d", osdID)
	buf, err := monCommand(conn, map[string]interface{}{
		"prefix": "auth get-or-create",
		"format": "json",
		"entity": entity,
		"caps":   []string{"mon", "allow profile osd", "osd", "allow *"},
	})
	if err != nil {
		return "", err
	}

	// the response is a single-element list of {entity, key} records
	var entries []struct {
		Entity string `json:"entity"`
		Key    string `json:"key"`
	}
	if err := json.Unmarshal(buf, &entries); err != nil || len(entries) == 0 {
		var single struct {
			Key string `json:"key"`
		}
		if err2 := json.Unmarshal(buf, &single); err2 == nil && single.Key != "" {
			return single.Key, nil
		}
		return "", errkind.New(errkind.ParseFailure, "no key in auth get-or-create response for %s: %q", entity, string(buf))
	}
	return entries[0].Key, nil
}

// AuthDelete removes the OSD's auth entity.
func AuthDelete(conn Connection, osdID int) error {
	_, err := monCommand(conn, map[string]interface{}{
		"prefix": "auth del",
		"entity": fmt.Sprintf("osd.%d", osdID),
	})
	return err
}

// OSDOut marks the OSD out of the placement hierarchy so data migrates away.
func OSDOut(conn Connection, osdID int) error {
	_, err := monCommand(conn, map[string]interface{}{
		"prefix": "osd out",
		"ids":    []string{strconv.Itoa(osdID)},
	})
	return err
}

// CrushAdd registers the OSD under the host in the crush map with the given
// weight.
func CrushAdd(conn Connection, osdID int, weight float64, host string) error {
	_, err := monCommand(conn, map[string]interface{}{
		"prefix": "osd crush add",
		"id":     osdID,
		"weight": weight,
		"args":   []string{"host=" + host},
	})
	return err
}

// CrushRemove takes the OSD out of the crush map.
func CrushRemove(conn Connection, osdID int) error {
	_, err := monCommand(conn, map[string]interface{}{
		"prefix": "osd crush remove",
		"name":   fmt.Sprintf("osd.%d", osdID),
	})
	return err
}

// ConfigGet reads a runtime config value for an entity, falling back to the
// local connection's view of the option when the mon has no runtime value.
func ConfigGet(conn Connection, who, key string) (string, error) {
	buf, err := monCommand(conn, map[string]interface{}{
		"prefix": "config get",
		"format": "json",
		"who":    who,
		"key":    key,
	})
	if err == nil {
		value := strings.Trim(strings.TrimSpace(string(buf)), `"`)
		if value != "" {
			return value, nil
		}
	}
	return conn.GetConfigOption(key)
}

// RemoveOSD deletes the OSD id from the cluster.
func RemoveOSD(conn Connection, osdID int) error {
	_, err := monCommand(conn, map[string]interface{}{
		"prefix": "osd rm",
		"ids":    []string{strconv.Itoa(osdID)},
	})
	return err
}
