package repository

import (
	"context"
	"errors"

	"aurumvault/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPayeeNotFound = errors.New("收款方不存在")

type PayeeRepository struct {
	db *gorm.DB
}

func NewPayeeRepository(db *gorm.DB) *PayeeRepository {
	return &PayeeRepository{db: db}
}

func (r *PayeeRepository) Create(ctx context.Context, payee *model.Payee) error {
	return r.db.WithContext(ctx).Create(payee).Error
}

func (r *PayeeRepository) GetByID(ctx context.Context, id int64) (*model.Payee, error) {
	var payee model.Payee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayeeNotFound
		}
		return nil, err
	}
	return &payee, nil
}

// GetCategoryThreshold 查询类别阈值覆盖，无覆盖返回 nil
func (r *PayeeRepository) GetCategoryThreshold(ctx context.Context, category string) (*decimal.Decimal, error) {
	var row model.CategoryThreshold
	err := r.db.WithContext(ctx).Where("category = ?", category).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row.Threshold, nil
}

// UpsertCategoryThreshold 设置类别阈值覆盖
func (r *PayeeRepository) UpsertCategoryThreshold(ctx context.Context, tx *gorm.DB, category string, threshold decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"threshold"}),
		}).
		Create(&model.CategoryThreshold{Category: category, Threshold: threshold}).Error
}
