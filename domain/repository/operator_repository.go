package repository

import "storefront-builder/domain/entity"

type OperatorRepository interface {
	// Upsert = Update + Insert（存在则更新，不存在则创建）
	Upsert(operator *entity.Operator) error

	// 根据 Clerk user_id 获取操作员，不存在返回 (nil, nil)
	GetByID(operatorID string) (*entity.Operator, error)
}
