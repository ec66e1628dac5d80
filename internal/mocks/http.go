package mocks

import (
	"net/http"

	"github.com/stretchr/testify/mock"
)

// MockHTTPClient implements the HTTP device's client interface for testing
// across packages
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)

	// Handle function return types (for tests inspecting the request)
	if fn, ok := args.Get(0).(func(*http.Request) *http.Response); ok {
		return fn(req), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}
