package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/grafana/rbac-actions/types"
)

// MockChecker is a mock of actions.Checker.
type MockChecker struct {
	mock.Mock
}

func (_m *MockChecker) CheckUserHasPermissions(ctx context.Context, permissions, passed []types.Permission) ([]types.Permission, error) {
	ret := _m.Called(ctx, permissions, passed)

	if rf, ok := ret.Get(0).(func(context.Context, []types.Permission, []types.Permission) ([]types.Permission, error)); ok {
		return rf(ctx, permissions, passed)
	}

	var r0 []types.Permission
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.Permission)
	}
	return r0, ret.Error(1)
}

func (_m *MockChecker) IsLoading() bool {
	ret := _m.Called()
	return ret.Bool(0)
}
