// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/williamokano/tddf_uploader/pkg/ledger"
)

// MockStore is a mock implementation of the ledger.Store interface
type MockStore struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, e
func (m *MockStore) Record(ctx context.Context, e ledger.Entry) error {
	ret := m.Called(ctx, e)
	return ret.Error(0)
}

// Has provides a mock function with given fields: ctx, filename
func (m *MockStore) Has(ctx context.Context, filename string) (bool, error) {
	ret := m.Called(ctx, filename)
	return ret.Bool(0), ret.Error(1)
}

// Count provides a mock function with given fields: ctx
func (m *MockStore) Count(ctx context.Context) (int, error) {
	ret := m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

// Filenames provides a mock function with given fields: ctx
func (m *MockStore) Filenames(ctx context.Context) ([]string, error) {
	ret := m.Called(ctx)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// Close provides a mock function with given fields:
func (m *MockStore) Close() error {
	ret := m.Called()
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ ledger.Store = (*MockStore)(nil)
