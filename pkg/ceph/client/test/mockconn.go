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
package test

// MockConnection mocks the cluster connection for tests. Any func field left
// nil makes the corresponding method a successful no-op.
type MockConnection struct {
	MockConnect         func() error
	MockShutdown        func()
	MockReadConfigFile  func(path string) error
	MockMonCommand      func(args []byte) (buffer []byte, info string, err error)
	MockGetFSID         func() (string, error)
	MockGetConfigOption func(name string) (string, error)
}

func (m *MockConnection) Connect() error {
	if m.MockConnect != nil {
		return m.MockConnect()
	}
	return nil
}

func (m *MockConnection) Shutdown() {
	if m.MockShutdown != nil {
		m.MockShutdown()
	}
}

func (m *MockConnection) ReadConfigFile(path string) error {
	if m.MockReadConfigFile != nil {
		return m.MockReadConfigFile(path)
	}
	return nil
}

func (m *MockConnection) MonCommand(args []byte) ([]byte, string, error) {
	if m.MockMonCommand != nil {
		return m.MockMonCommand(args)
	}
	return []byte{}, "", nil
}

func (m *MockConnection) GetFSID() (string, error) {
	if m.MockGetFSID != nil {
		return m.MockGetFSID()
	}
	return "", nil
}

func (m *MockConnection) GetConfigOption(name string) (string, error) {
	if m.MockGetConfigOption != nil {
		return m.MockGetConfigOption(name)
	}
	return "", nil
}
