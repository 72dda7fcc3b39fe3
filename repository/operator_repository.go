package repository

import (
	"errors"

	"storefront-builder/domain/entity"
	domainRepo "storefront-builder/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// operatorRepository GORM 实现 OperatorRepository 接口
type operatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository 构造函数
func NewOperatorRepository(db *gorm.DB) domainRepo.OperatorRepository {
	return &operatorRepository{db: db}
}

// Upsert 创建或更新操作员（Clerk Webhook 同步使用）
// ON CONFLICT 由 GORM 按方言生成（mysql 下为 ON DUPLICATE KEY UPDATE）
func (r *operatorRepository) Upsert(operator *entity.Operator) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "avatar_url", "updated_at"}),
	}).Create(operator).Error
}

// GetByID 根据 Clerk user_id 查询操作员
func (r *operatorRepository) GetByID(operatorID string) (*entity.Operator, error) {
	var operator entity.Operator
	err := r.db.Where("id = ?", operatorID).First(&operator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &operator, err
}
