package usecase

import (
	"storefront-builder/domain/entity"

	"github.com/stretchr/testify/mock"
)

// ========== MockPageGateway ==========
// 实现 repository.PageGateway 接口，用于 BuilderUseCase 的单元测试

type MockPageGateway struct {
	mock.Mock
}

func (m *MockPageGateway) LoadDraft(pageKey string) (*entity.PageDraft, error) {
	args := m.Called(pageKey)
	// 处理 nil 情况
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PageDraft), args.Error(1)
}

func (m *MockPageGateway) SaveDraft(pageKey string, layout entity.Document, theme *entity.ThemeTokens) error {
	args := m.Called(pageKey, layout, theme)
	return args.Error(0)
}

func (m *MockPageGateway) Publish(pageKey string, layout entity.Document, theme *entity.ThemeTokens) error {
	args := m.Called(pageKey, layout, theme)
	return args.Error(0)
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
