package repository

import (
	"fmt"

	"gorm.io/gorm"

	"lawassist/internal/model"
)

type TurnRepository struct {
	db *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

func (r *TurnRepository) Create(turn *model.Turn) error {
	if err := r.db.Create(turn).Error; err != nil {
		return fmt.Errorf("create turn failed: %w", err)
	}
	return nil
}

// ListByConversationID returns turns oldest first.
func (r *TurnRepository) ListByConversationID(conversationID uint, limit int) ([]model.Turn, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var turns []model.Turn
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Limit(limit).Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list turns failed: %w", err)
	}
	return turns, nil
}

// ListAllByConversationID returns every turn oldest first, without the list
// clamp. Used for transcript export, which must cover the whole conversation.
func (r *TurnRepository) ListAllByConversationID(conversationID uint) ([]model.Turn, error) {
	var turns []model.Turn
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list all turns failed: %w", err)
	}
	return turns, nil
}

func (r *TurnRepository) CountByConversationID(conversationID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Turn{}).
		Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count turns failed: %w", err)
	}
	return count, nil
}

func (r *TurnRepository) DeleteByConversationID(conversationID uint) error {
	if err := r.db.Where("conversation_id = ?", conversationID).Delete(&model.Turn{}).Error; err != nil {
		return fmt.Errorf("delete turns failed: %w", err)
	}
	return nil
}
