package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ajramos/resched/internal/hostdom"
)

// Testify mocks for the service interfaces, shared by unit tests and the
// test/helpers harness.

// MockCancelTimeRepository is a mock CancelTimeRepository
type MockCancelTimeRepository struct {
	mock.Mock
}

func (m *MockCancelTimeRepository) Load(ctx context.Context) (SavedCancelledTime, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(SavedCancelledTime), args.Bool(1), args.Error(2)
}

func (m *MockCancelTimeRepository) Save(ctx context.Context, rec SavedCancelledTime) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockCancelTimeRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCaptureService is a mock CaptureService
type MockCaptureService struct {
	mock.Mock
}

func (m *MockCaptureService) HandleCancel(ctx context.Context, displayed string) error {
	args := m.Called(ctx, displayed)
	return args.Error(0)
}

// MockScheduleService is a mock ScheduleService
type MockScheduleService struct {
	mock.Mock
}

func (m *MockScheduleService) ScheduleAt(ctx context.Context, target time.Time) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

// MockInjectionService is a mock InjectionService
type MockInjectionService struct {
	mock.Mock
}

func (m *MockInjectionService) InjectMenu(ctx context.Context, menu hostdom.NodeID) error {
	args := m.Called(ctx, menu)
	return args.Error(0)
}

func (m *MockInjectionService) Injected(menu hostdom.NodeID) bool {
	args := m.Called(menu)
	return args.Bool(0)
}

func (m *MockInjectionService) Verify(ctx context.Context, menu hostdom.NodeID) bool {
	args := m.Called(ctx, menu)
	return args.Bool(0)
}

func (m *MockInjectionService) Forget(menu hostdom.NodeID) {
	m.Called(menu)
}

func (m *MockInjectionService) Reset() {
	m.Called()
}

func (m *MockInjectionService) HandleOptionClick(ctx context.Context, node hostdom.NodeID, marker string) error {
	args := m.Called(ctx, node, marker)
	return args.Error(0)
}

func (m *MockInjectionService) HandleRefreshClick(ctx context.Context, node hostdom.NodeID) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

func (m *MockInjectionService) Wait() {
	m.Called()
}
