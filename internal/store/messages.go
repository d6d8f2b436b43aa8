package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/ws"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("store: not found")

// Summary is the denormalized last-message state written onto the chat row
type Summary struct {
	Text      string
	Timestamp time.Time
	Status    string
}

// MessageStore persists chats and messages for the outbound pipeline
type MessageStore struct {
	DB  *gorm.DB
	Hub ws.Publisher
}

func NewMessageStore(db *gorm.DB, hub ws.Publisher) *MessageStore {
	if hub == nil {
		hub = ws.NopPublisher{}
	}
	return &MessageStore{DB: db, Hub: hub}
}

// UpsertChatAndRecordMessage finds or creates the chat for (team, instance,
// recipient), applies the last-message summary, and records the message in a
// single transaction. A message id that already exists is a no-op insert and
// the stored row is returned: provider callbacks and synchronous send
// responses may both attempt to record the same id.
func (s *MessageStore) UpsertChatAndRecordMessage(ctx context.Context, teamID string, instanceID uint, recipient string, summary Summary, msg models.Message) (models.Message, error) {
	var stored models.Message
	var chat models.Chat

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("team_id = ? AND instance_id = ? AND remote_jid = ?", teamID, instanceID, recipient).
			First(&chat).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			chat = models.Chat{
				TeamID:        teamID,
				InstanceID:    instanceID,
				RemoteJID:     recipient,
				LastText:      summary.Text,
				LastTimestamp: summary.Timestamp,
				LastFromMe:    true,
				LastStatus:    summary.Status,
			}
			if err := tx.Create(&chat).Error; err != nil {
				return fmt.Errorf("failed to create chat: %w", err)
			}
		case err != nil:
			return err
		default:
			// Last write wins regardless of ordering races
			updates := map[string]interface{}{
				"last_text":      summary.Text,
				"last_timestamp": summary.Timestamp,
				"last_from_me":   true,
				"last_status":    summary.Status,
			}
			if err := tx.Model(&chat).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update chat summary: %w", err)
			}
		}

		msg.ChatID = chat.ID
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).Create(&msg)
		if res.Error != nil {
			return fmt.Errorf("failed to insert message: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			// Duplicate redelivery: keep the original row
			return tx.Where("message_id = ?", msg.MessageID).First(&stored).Error
		}
		stored = msg
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}

	s.Hub.Publish(teamID, ws.EventChatUpdated, chat)
	s.Hub.Publish(teamID, ws.EventMessageSent, stored)

	return stored, nil
}

// ChatsByTeam lists chats for the team's inbox view, most recent first
func (s *MessageStore) ChatsByTeam(ctx context.Context, teamID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.DB.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("last_timestamp DESC").
		Find(&chats).Error
	return chats, err
}

// MessagesByChat returns the message log of one chat, oldest first
func (s *MessageStore) MessagesByChat(ctx context.Context, teamID string, chatID uint) ([]models.Message, error) {
	var chat models.Chat
	err := s.DB.WithContext(ctx).Where("id = ? AND team_id = ?", chatID, teamID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	err = s.DB.WithContext(ctx).
		Where("chat_id = ?", chat.ID).
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}
