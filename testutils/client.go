package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/grafana/rbac-actions/types"
)

// MockClient is a mock of auth.Client.
type MockClient struct {
	mock.Mock
}

func (_m *MockClient) GetUserPermissions(ctx context.Context) ([]types.Permission, error) {
	ret := _m.Called(ctx)

	var r0 []types.Permission
	if rf, ok := ret.Get(0).(func(context.Context) []types.Permission); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.Permission)
	}
	return r0, ret.Error(1)
}

func (_m *MockClient) CheckPermissions(ctx context.Context, permissions []types.Permission) ([]bool, error) {
	ret := _m.Called(ctx, permissions)

	var r0 []bool
	if rf, ok := ret.Get(0).(func(context.Context, []types.Permission) []bool); ok {
		r0 = rf(ctx, permissions)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]bool)
	}
	return r0, ret.Error(1)
}

func (_m *MockClient) Invalidate(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}
