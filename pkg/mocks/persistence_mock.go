package mocks

import (
	"context"

	"github.com/dukex/ximager/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Keywords(ctx context.Context) (models.KeywordTable, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(models.KeywordTable), args.Error(1)
}

func (m *MockPersistence) SaveKeywords(ctx context.Context, table models.KeywordTable) error {
	args := m.Called(ctx, table)

	return args.Error(0)
}

func (m *MockPersistence) Macros(ctx context.Context) (models.MacroTable, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(models.MacroTable), args.Error(1)
}

func (m *MockPersistence) SaveMacros(ctx context.Context, table models.MacroTable) error {
	args := m.Called(ctx, table)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
