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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdadm/osdadm/pkg/ceph/client/test"
)

func TestCreateOSD(t *testing.T) {
	osdUUID := uuid.MustParse("12345678-9abc-def0-1234-56789abcdef0")

	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			var cmd map[string]interface{}
			require.NoError(t, json.Unmarshal(args, &cmd))
			assert.Equal(t, "osd create", cmd["prefix"])
			assert.Equal(t, "json", cmd["format"])
			assert.Equal(t, osdUUID.String(), cmd["uuid"])
			_, hasID := cmd["id"]
			assert.False(t, hasID)
			return []byte(`{"osdid":23}`), "", nil
		},
	}

	id, err := CreateOSD(conn, osdUUID, nil)
	require.NoError(t, err)
	assert.Equal(t, 23, id)
}

func TestCreateOSDRequestedID(t *testing.T) {
	osdUUID := uuid.MustParse("12345678-9abc-def0-1234-56789abcdef0")

	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			var cmd map[string]interface{}
			require.NoError(t, json.Unmarshal(args, &cmd))
			assert.Equal(t, float64(5), cmd["id"])
			return []byte(`{"osdid":5}`), "", nil
		},
	}

	requested := 5
	id, err := CreateOSD(conn, osdUUID, &requested)
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}

func TestAuthGetOrCreate(t *testing.T) {
	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			var cmd map[string]interface{}
			require.NoError(t, json.Unmarshal(args, &cmd))
			assert.Equal(t, "auth get-or-create", cmd["prefix"])
			assert.Equal(t, "osd.3", cmd["entity"])
			return []byte(`[{"entity":"osd.3","key":"AQBsF8dYTBryIBAAs6z5CWPTTDzkbcvIzvFw6g=="}]`), "", nil
		},
	}

	key, err := AuthGetOrCreate(conn, 3)
	require.NoError(t, err)
	assert.Equal(t, "AQBsF8dYTBryIBAAs6z5CWPTTDzkbcvIzvFw6g==", key)
}

func TestAuthGetOrCreateSingleObject(t *testing.T) {
	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			return []byte(`{"key":"AQBsF8dYTBryIBAA"}`), "", nil
		},
	}

	key, err := AuthGetOrCreate(conn, 3)
	require.NoError(t, err)
	assert.Equal(t, "AQBsF8dYTBryIBAA", key)
}

func TestCrushAdd(t *testing.T) {
	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			var cmd map[string]interface{}
			require.NoError(t, json.Unmarshal(args, &cmd))
			assert.Equal(t, "osd crush add", cmd["prefix"])
			assert.Equal(t, float64(7), cmd["id"])
			assert.InDelta(t, 0.01, cmd["weight"], 1e-9)
			assert.Equal(t, []interface{}{"host=node1"}, cmd["args"])
			return []byte{}, "", nil
		},
	}

	assert.NoError(t, CrushAdd(conn, 7, 0.01, "node1"))
}

func TestOSDOutAndRemove(t *testing.T) {
	prefixes := []string{}
	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			var cmd map[string]interface{}
			require.NoError(t, json.Unmarshal(args, &cmd))
			prefixes = append(prefixes, cmd["prefix"].(string))
			assert.Equal(t, []interface{}{"11"}, cmd["ids"])
			return []byte{}, "", nil
		},
	}

	require.NoError(t, OSDOut(conn, 11))
	require.NoError(t, RemoveOSD(conn, 11))
	assert.Equal(t, []string{"osd out", "osd rm"}, prefixes)
}

func TestConfigGetFallback(t *testing.T) {
	conn := &test.MockConnection{
		MockMonCommand: func(args []byte) ([]byte, string, error) {
			return []byte(""), "", nil
		},
		MockGetConfigOption: func(name string) (string, error) {
			assert.Equal(t, "osd_journal_size", name)
			return "5120", nil
		},
	}

	value, err := ConfigGet(conn, "osd", "osd_journal_size")
	require.NoError(t, err)
	assert.Equal(t, "5120", value)
}
