package mocks

import (
	"context"

	"github.com/dukex/ximager/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a mock implementation of gateway.Gateway interface.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) UploadAsset(ctx context.Context, asset models.Asset) (string, error) {
	args := m.Called(ctx, asset)

	return args.String(0), args.Error(1)
}

func (m *MockGateway) SubmitGraph(ctx context.Context, graph models.ExecutionGraph) (string, error) {
	args := m.Called(ctx, graph)

	return args.String(0), args.Error(1)
}

func (m *MockGateway) FetchResult(ctx context.Context, runID string) (*models.ResultRecord, error) {
	args := m.Called(ctx, runID)

	record, _ := args.Get(0).(*models.ResultRecord)

	return record, args.Error(1)
}

func (m *MockGateway) FetchAsset(ctx context.Context, ref models.OutputRef) (models.Asset, error) {
	args := m.Called(ctx, ref)

	asset, _ := args.Get(0).(models.Asset)

	return asset, args.Error(1)
}

func (m *MockGateway) LoadGraphTemplate(ctx context.Context, name string) (models.ExecutionGraph, error) {
	args := m.Called(ctx, name)

	graph, _ := args.Get(0).(models.ExecutionGraph)

	return graph, args.Error(1)
}

func (m *MockGateway) ListGraphTemplates(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	names, _ := args.Get(0).([]string)

	return names, args.Error(1)
}
