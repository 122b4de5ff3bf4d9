package implementation

import (
	"context"
	"database/sql"

	"local-assistant/internal/entity"
	"local-assistant/internal/mapper"
	"local-assistant/internal/model"
	"local-assistant/internal/repository/contract"
	"local-assistant/internal/repository/specification"

	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.StoredMessage) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	message.Id = m.Id
	return nil
}

func (r *MessageRepositoryImpl) DeleteByConversationId(ctx context.Context, conversationId string) (int64, error) {
	res := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).Delete(&model.Message{})
	return res.RowsAffected, res.Error
}

func (r *MessageRepositoryImpl) DeleteAllButLatest(ctx context.Context, conversationId string, keep int) (int64, error) {
	if keep <= 0 {
		return r.DeleteByConversationId(ctx, conversationId)
	}

	latest := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("id").
		Where("conversation_id = ?", conversationId).
		Order("created_at DESC").
		Order("id DESC").
		Limit(keep)

	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id NOT IN (?)", conversationId, latest).
		Delete(&model.Message{})
	return res.RowsAffected, res.Error
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StoredMessage, error) {
	var models []*model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.MessagesToEntities(models), nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepositoryImpl) SumTokens(ctx context.Context, conversationId string) (int64, error) {
	var total sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("SUM(tokens)").
		Where("conversation_id = ?", conversationId).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}
