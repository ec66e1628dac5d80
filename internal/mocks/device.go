package mocks

import (
	"github.com/brettbedarf/devfs"
	"github.com/stretchr/testify/mock"
)

// MockDevice implements devfs.Device for testing across packages
type MockDevice struct {
	mock.Mock
}

func (m *MockDevice) Name() string {
	return m.Called().String(0)
}

func (m *MockDevice) Parent() (devfs.Directory, bool) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(devfs.Directory), args.Bool(1)
}

func (m *MockDevice) QueryPath(path string) (devfs.Device, bool) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(devfs.Device), args.Bool(1)
}

func (m *MockDevice) GetFile(path string) (devfs.File, bool) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(devfs.File), args.Bool(1)
}

func (m *MockDevice) GetDirectory(path string) (devfs.Directory, bool, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(devfs.Directory), args.Bool(1), args.Error(2)
}

func (m *MockDevice) Files() ([]devfs.File, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]devfs.File), args.Error(1)
}

func (m *MockDevice) Directories() ([]devfs.Directory, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]devfs.Directory), args.Error(1)
}

func (m *MockDevice) RemoveFile(path string) error {
	return m.Called(path).Error(0)
}

func (m *MockDevice) RemoveDirectory(path string) error {
	return m.Called(path).Error(0)
}

var _ devfs.Device = (*MockDevice)(nil)
