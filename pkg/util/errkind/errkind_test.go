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
package errkind

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestGetKind(t *testing.T) {
	err := New(NotFound, "volume group %s not found", "ceph-x")
	assert.Equal(t, NotFound, GetKind(err))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "volume group ceph-x not found", err.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(StateInconsistency, "tags carry no osd id")
	wrapped := errors.Wrap(inner, "osd.3")

	assert.Equal(t, StateInconsistency, GetKind(wrapped))
	assert.True(t, IsStateInconsistency(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("exit status 2")
	err := Wrap(ExternalToolFailure, cause, "sgdisk failed on %s", "/dev/sdb")

	assert.Equal(t, ExternalToolFailure, GetKind(err))
	assert.Equal(t, "sgdisk failed on /dev/sdb: exit status 2", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestUnclassified(t *testing.T) {
	assert.Equal(t, Unclassified, GetKind(errors.New("plain")))
	assert.Equal(t, Unclassified, GetKind(nil))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "config-missing", ConfigMissing.String())
	assert.Equal(t, "not-found", NotFound.String())
	assert.Equal(t, "unclassified", Unclassified.String())
}
