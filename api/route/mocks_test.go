package route

import (
	"storefront-builder/domain/entity"

	"github.com/stretchr/testify/mock"
)

// ========== MockPageGateway ==========

type MockPageGateway struct {
	mock.Mock
}

func (m *MockPageGateway) LoadDraft(pageKey string) (*entity.PageDraft, error) {
	args := m.Called(pageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PageDraft), args.Error(1)
}

func (m *MockPageGateway) SaveDraft(pageKey string, layout entity.Document, theme *entity.ThemeTokens) error {
	return m.Called(pageKey, layout, theme).Error(0)
}

func (m *MockPageGateway) Publish(pageKey string, layout entity.Document, theme *entity.ThemeTokens) error {
	return m.Called(pageKey, layout, theme).Error(0)
}

func (m *MockPageGateway) LoadPublished(pageKey string) (*entity.PageDraft, error) {
	args := m.Called(pageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PageDraft), args.Error(1)
}

func (m *MockPageGateway) ListPages(siteKey string) ([]entity.PageInfo, error) {
	args := m.Called(siteKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.PageInfo), args.Error(1)
}

// ========== MockOperatorRepository ==========

type MockOperatorRepository struct {
	mock.Mock
}

func (m *MockOperatorRepository) Upsert(operator *entity.Operator) error {
	return m.Called(operator).Error(0)
}

func (m *MockOperatorRepository) GetByID(operatorID string) (*entity.Operator, error) {
	args := m.Called(operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Operator), args.Error(1)
}
