package repository

import (
	"CollabChatAPI/internal/entity"
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type MessageRepository struct {
	db Scope
}

func NewMessageRepository(db Scope) *MessageRepository {
	return &MessageRepository{
		db: db,
	}
}

// Append bumps the chat's sequence counter under its row lock, so concurrent
// appends to one chat are serialized until the surrounding transaction ends.
func (r *MessageRepository) Append(ctx context.Context, msg *entity.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	query, args, err := sq.Update("chats").
		Set("last_seq", sq.Expr("last_seq + 1")).
		Set("last_message_at", sq.Expr("GREATEST(clock_timestamp(), COALESCE(last_message_at, '-infinity'::timestamptz) + interval '1 microsecond')")).
		Where(sq.Eq{"id": msg.ChatID}).
		Suffix("RETURNING last_seq, last_message_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&msg.Seq, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrChatNotFound
	}
	if err != nil {
		return fmt.Errorf("advance chat sequence: %w", err)
	}

	query, args, err = sq.Insert("messages").
		Columns("id", "chat_id", "sender_id", "seq", "content", "created_at").
		Values(msg.ID, msg.ChatID, msg.SenderID, msg.Seq, msg.Content, msg.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListPage(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]entity.Message, error) {
	query, args, err := sq.Select("id", "chat_id", "sender_id", "seq", "content", "created_at").
		From("messages").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("seq DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	messages := []entity.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
