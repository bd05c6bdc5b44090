package repository

import (
	"context"
	"errors"
	"time"

	"aurumvault/internal/model"

	"gorm.io/gorm"
)

var (
	ErrVerificationNotFound   = errors.New("审核单不存在")
	ErrVerificationNotPending = errors.New("审核单已终态，不能重复处理")
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, tx *gorm.DB, v *model.PaymentVerification) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(v).Error
}

func (r *VerificationRepository) GetByVerificationNo(ctx context.Context, verificationNo string) (*model.PaymentVerification, error) {
	var v model.PaymentVerification
	err := r.db.WithContext(ctx).Where("verification_no = ?", verificationNo).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Decide 记录审核决定（PENDING → APPROVED/REJECTED 的守卫更新）
//
// 【关键点】WHERE status = 'PENDING' 保证决定恰好生效一次：
// 并发重放的第二个请求 RowsAffected == 0，返回已终态错误而不是静默重复
func (r *VerificationRepository) Decide(ctx context.Context, tx *gorm.DB, id int64, toStatus string, reviewerID int64, notes string) error {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.PaymentVerification{}).
		Where("id = ? AND status = ?", id, model.VerificationStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"reviewer_id":  reviewerID,
			"review_notes": notes,
			"reviewed_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVerificationNotPending
	}
	return nil
}

// ListPending 待审核列表（管理端）
func (r *VerificationRepository) ListPending(ctx context.Context, limit int) ([]*model.PaymentVerification, error) {
	var list []*model.PaymentVerification
	err := r.db.WithContext(ctx).
		Where("status = ?", model.VerificationStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
