package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"whatsapp-crm/internal/database"
	"whatsapp-crm/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func outboundMessage(id, text string) models.Message {
	return models.Message{
		MessageID: id,
		FromMe:    true,
		Type:      "text",
		Text:      text,
		Status:    models.MessageStatusSent,
		Timestamp: time.Now(),
	}
}

func TestUpsertChatCreatesOnce(t *testing.T) {
	db := testDB(t)
	s := NewMessageStore(db, nil)
	ctx := context.Background()

	summary := Summary{Text: "hello", Timestamp: time.Now(), Status: models.MessageStatusSent}
	if _, err := s.UpsertChatAndRecordMessage(ctx, "team-1", 1, "5511999999999", summary, outboundMessage("m1", "hello")); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	summary2 := Summary{Text: "again", Timestamp: time.Now(), Status: models.MessageStatusSent}
	if _, err := s.UpsertChatAndRecordMessage(ctx, "team-1", 1, "5511999999999", summary2, outboundMessage("m2", "again")); err != nil {
		t.Fatalf("second send failed: %v", err)
	}

	var count int64
	db.Model(&models.Chat{}).Where("team_id = ? AND instance_id = ? AND remote_jid = ?", "team-1", 1, "5511999999999").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 chat row, got %d", count)
	}

	var chat models.Chat
	db.First(&chat)
	if chat.LastText != "again" {
		t.Errorf("summary not updated in place, last_text=%q", chat.LastText)
	}
	if !chat.LastFromMe {
		t.Error("expected last_from_me=true on outbound send")
	}
}

func TestChatsAreScopedPerTriple(t *testing.T) {
	db := testDB(t)
	s := NewMessageStore(db, nil)
	ctx := context.Background()
	summary := Summary{Text: "x", Timestamp: time.Now(), Status: models.MessageStatusSent}

	s.UpsertChatAndRecordMessage(ctx, "team-1", 1, "111", summary, outboundMessage("a", "x"))
	s.UpsertChatAndRecordMessage(ctx, "team-1", 2, "111", summary, outboundMessage("b", "x"))
	s.UpsertChatAndRecordMessage(ctx, "team-2", 1, "111", summary, outboundMessage("c", "x"))

	var count int64
	db.Model(&models.Chat{}).Count(&count)
	if count != 3 {
		t.Fatalf("expected 3 distinct chats for 3 triples, got %d", count)
	}

	chats, err := s.ChatsByTeam(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats for team-1, got %d", len(chats))
	}
}

func TestMessageInsertIsIdempotent(t *testing.T) {
	db := testDB(t)
	s := NewMessageStore(db, nil)
	ctx := context.Background()
	summary := Summary{Text: "hi", Timestamp: time.Now(), Status: models.MessageStatusSent}

	first, err := s.UpsertChatAndRecordMessage(ctx, "team-1", 1, "222", summary, outboundMessage("dup-id", "hi"))
	if err != nil {
		t.Fatal(err)
	}

	// Same provider id redelivered with different text
	second, err := s.UpsertChatAndRecordMessage(ctx, "team-1", 1, "222", summary, outboundMessage("dup-id", "changed"))
	if err != nil {
		t.Fatalf("duplicate insert must be a no-op, got error: %v", err)
	}

	var count int64
	db.Model(&models.Message{}).Where("message_id = ?", "dup-id").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 row for dup-id, got %d", count)
	}
	if second.ID != first.ID {
		t.Errorf("expected the original stored row back, got id %d vs %d", second.ID, first.ID)
	}
	if second.Text != "hi" {
		t.Errorf("original row must win, got text %q", second.Text)
	}
}

func TestMessagesByChatScopesTeam(t *testing.T) {
	db := testDB(t)
	s := NewMessageStore(db, nil)
	ctx := context.Background()
	summary := Summary{Text: "x", Timestamp: time.Now(), Status: models.MessageStatusSent}

	stored, err := s.UpsertChatAndRecordMessage(ctx, "team-1", 1, "333", summary, outboundMessage("m1", "x"))
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := s.MessagesByChat(ctx, "team-1", stored.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	if _, err := s.MessagesByChat(ctx, "team-2", stored.ChatID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign team, got %v", err)
	}
}
