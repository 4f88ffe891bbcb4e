package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"story-client/internal/gemini"
)

// MockGenerator is a mock type for the service.Generator interface.
type MockGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, prompt
func (_m *MockGenerator) Generate(ctx context.Context, prompt string) (*gemini.GenerateContentResponse, error) {
	ret := _m.Called(ctx, prompt)

	var r0 *gemini.GenerateContentResponse
	if rf, ok := ret.Get(0).(func(context.Context, string) *gemini.GenerateContentResponse); ok {
		r0 = rf(ctx, prompt)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*gemini.GenerateContentResponse)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, prompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockOnlineChecker is a mock type for the service.OnlineChecker interface.
type MockOnlineChecker struct {
	mock.Mock
}

// IsOnline provides a mock function with given fields: ctx
func (_m *MockOnlineChecker) IsOnline(ctx context.Context) bool {
	ret := _m.Called(ctx)

	var r0 bool
	if rf, ok := ret.Get(0).(func(context.Context) bool); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Bool(0)
	}

	return r0
}

// MockRateLimiter is a mock type for the service.RateLimiter interface.
type MockRateLimiter struct {
	mock.Mock
}

// CheckAndRecord provides a mock function with no fields
func (_m *MockRateLimiter) CheckAndRecord() error {
	ret := _m.Called()
	return ret.Error(0)
}
