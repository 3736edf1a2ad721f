package mocks

import (
	"io/fs"

	"github.com/stretchr/testify/mock"

	"github.com/lc/outliers/internal/filesys"
)

var _ filesys.ReadFS = (*MockFS)(nil)

// MockFS is a testify mock implementing filesys.ReadFS.
type MockFS struct {
	mock.Mock
}

// Stat mocks the Stat method.
func (m *MockFS) Stat(p string) (fs.FileInfo, error) {
	args := m.Called(p)
	// Need to handle potential nil interface return
	var fileInfo fs.FileInfo
	if args.Get(0) != nil {
		fileInfo = args.Get(0).(fs.FileInfo)
	}
	return fileInfo, args.Error(1)
}

// ReadFile mocks the ReadFile method.
func (m *MockFS) ReadFile(p string) ([]byte, error) {
	args := m.Called(p)
	var data []byte
	if args.Get(0) != nil {
		data = args.Get(0).([]byte)
	}
	return data, args.Error(1)
}

// Glob mocks the Glob method.
func (m *MockFS) Glob(pattern string) ([]string, error) {
	args := m.Called(pattern)
	var matches []string
	if args.Get(0) != nil {
		matches = args.Get(0).([]string)
	}
	return matches, args.Error(1)
}
