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

// Package errkind discriminates failure classes so callers can decide between
// retry, manual intervention and abort without parsing message text.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Unclassified is the zero kind for errors produced outside this package.
	Unclassified Kind = iota
	// ConfigMissing indicates a required configuration file is absent.
	ConfigMissing
	// ConnectionFailure indicates the cluster control plane is unreachable.
	ConnectionFailure
	// ParseFailure indicates a malformed version string, UUID or tag.
	ParseFailure
	// NotFound indicates an expected partition, volume group, mountpoint or
	// user account is absent.
	NotFound
	// StateInconsistency indicates durable state that contradicts itself,
	// e.g. volume tags present but missing the OSD id or fsid.
	StateInconsistency
	// ExternalToolFailure indicates a non-zero exit from a spawned process.
	ExternalToolFailure
	// IOFailure indicates a filesystem or device operation failed.
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case ConfigMissing:
		return "config-missing"
	case ConnectionFailure:
		return "connection-failure"
	case ParseFailure:
		return "parse-failure"
	case NotFound:
		return "not-found"
	case StateInconsistency:
		return "state-inconsistency"
	case ExternalToolFailure:
		return "external-tool-failure"
	case IOFailure:
		return "io-failure"
	}
	return "unclassified"
}

// Error is a kinded error. The message is always human readable; for tool
// failures it carries the captured stderr of the failed process.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// New creates a kinded error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates a cause with a kind and message.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// GetKind returns the error's kind, unwrapping through pkg/errors and
// stdlib wrapping. Unrecognized errors report Unclassified.
func GetKind(err error) Kind {
	for err != nil {
		if ke, ok := err.(*Error); ok {
			return ke.kind
		}
		err = errors.Unwrap(err)
	}
	return Unclassified
}

// IsNotFound reports whether the error chain carries the NotFound kind.
func IsNotFound(err error) bool { return GetKind(err) == NotFound }

// IsConfigMissing reports whether the error chain carries the ConfigMissing kind.
func IsConfigMissing(err error) bool { return GetKind(err) == ConfigMissing }

// IsParseFailure reports whether the error chain carries the ParseFailure kind.
func IsParseFailure(err error) bool { return GetKind(err) == ParseFailure }

// IsStateInconsistency reports whether the error chain carries the
// StateInconsistency kind.
func IsStateInconsistency(err error) bool { return GetKind(err) == StateInconsistency }

// IsExternalToolFailure reports whether the error chain carries the
// ExternalToolFailure kind.
func IsExternalToolFailure(err error) bool { return GetKind(err) == ExternalToolFailure }
