package repository

import (
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/helper"
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var chatColumns = []string{
	"c.id", "c.is_group", "c.creator_id", "c.name", "c.avatar",
	"c.direct_pair_key", "c.last_seq", "c.last_message_at", "c.created_at",
}

type ChatRepository struct {
	db Scope
}

func NewChatRepository(db Scope) *ChatRepository {
	return &ChatRepository{
		db: db,
	}
}

// Create inserts the chat with its initial members. A second direct chat for
// the same pair fails with ErrPairConflict.
func (r *ChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	if len(chat.Members) == 0 {
		return ErrEmptyMembers
	}
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	if !chat.IsGroup {
		if len(chat.Members) != 2 {
			return ErrDirectChatMembers
		}
		key := helper.PairKey(chat.Members[0].UserID, chat.Members[1].UserID)
		chat.DirectPairKey = &key
	}

	query, args, err := sq.Insert("chats").
		Columns("id", "is_group", "creator_id", "name", "avatar", "direct_pair_key").
		Values(chat.ID, chat.IsGroup, chat.CreatorID, chat.Name, chat.Avatar, chat.DirectPairKey).
		Suffix("RETURNING created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&chat.CreatedAt)
	if isUniqueViolation(err, chatsDirectPairKeyConstraint) {
		return ErrPairConflict
	}
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	for i := range chat.Members {
		chat.Members[i].ChatID = chat.ID
		chat.Members[i].JoinedAt = chat.CreatedAt
		if chat.Members[i].Role == "" {
			chat.Members[i].Role = entity.RoleMember
		}
	}

	builder := sq.Insert("chat_members").
		Columns("chat_id", "user_id", "role", "joined_at").
		PlaceholderFormat(sq.Dollar)
	for _, m := range chat.Members {
		builder = builder.Values(m.ChatID, m.UserID, m.Role, m.JoinedAt)
	}

	query, args, err = builder.ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert chat members: %w", err)
	}
	return nil
}

func (r *ChatRepository) AddMembers(ctx context.Context, chatID uuid.UUID, members []entity.ChatMember) ([]entity.ChatMember, error) {
	if len(members) == 0 {
		return nil, ErrEmptyMembers
	}

	builder := sq.Insert("chat_members").
		Columns("chat_id", "user_id", "role").
		Suffix("ON CONFLICT (chat_id, user_id) DO NOTHING RETURNING chat_id, user_id, role, joined_at").
		PlaceholderFormat(sq.Dollar)
	for _, m := range members {
		role := m.Role
		if role == "" {
			role = entity.RoleMember
		}
		builder = builder.Values(chatID, m.UserID, role)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	added := []entity.ChatMember{}
	err = r.db.SelectContext(ctx, &added, query, args...)
	if isForeignKeyViolation(err, chatMembersChatIDForeignKey) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("add chat members: %w", err)
	}
	return added, nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Chat, error) {
	return r.getOne(ctx, sq.Eq{"c.id": id})
}

func (r *ChatRepository) FindDirectBetween(ctx context.Context, a, b uuid.UUID) (*entity.Chat, error) {
	return r.getOne(ctx, sq.Eq{"c.direct_pair_key": helper.PairKey(a, b)})
}

func (r *ChatRepository) getOne(ctx context.Context, where sq.Eq) (*entity.Chat, error) {
	query, args, err := sq.Select(chatColumns...).
		From("chats c").
		Where(where).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var chat entity.Chat
	err = r.db.GetContext(ctx, &chat, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}

	chats := []entity.Chat{chat}
	if err := r.loadMembers(ctx, chats); err != nil {
		return nil, err
	}
	return &chats[0], nil
}

// IsMember returns ErrChatNotFound when the chat itself does not exist.
func (r *ChatRepository) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	query, args, err := sq.Select().
		Column(sq.Expr("EXISTS (SELECT 1 FROM chat_members m WHERE m.chat_id = c.id AND m.user_id = ?)", userID)).
		From("chats c").
		Where(sq.Eq{"c.id": chatID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	var isMember bool
	err = r.db.GetContext(ctx, &isMember, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrChatNotFound
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return isMember, nil
}

func (r *ChatRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]entity.Chat, error) {
	query, args, err := sq.Select(chatColumns...).
		From("chats c").
		Join("chat_members m ON m.chat_id = c.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("COALESCE(c.last_message_at, c.created_at) DESC", "c.id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	chats := []entity.Chat{}
	if err := r.db.SelectContext(ctx, &chats, query, args...); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if err := r.loadMembers(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *ChatRepository) loadMembers(ctx context.Context, chats []entity.Chat) error {
	if len(chats) == 0 {
		return nil
	}

	ids := make([]string, 0, len(chats))
	index := make(map[uuid.UUID]int, len(chats))
	for i, c := range chats {
		ids = append(ids, c.ID.String())
		index[c.ID] = i
	}

	query, args, err := sq.Select("chat_id", "user_id", "role", "joined_at").
		From("chat_members").
		Where(sq.Eq{"chat_id": ids}).
		OrderBy("joined_at", "user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	var members []entity.ChatMember
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return fmt.Errorf("load chat members: %w", err)
	}

	for _, m := range members {
		i := index[m.ChatID]
		chats[i].Members = append(chats[i].Members, m)
	}
	return nil
}
