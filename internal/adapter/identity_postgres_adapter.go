package adapter

import (
	"CollabChatAPI/internal/model"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const identityCachePrefix = "identity:"

type userRow struct {
	ID        uuid.UUID      `db:"id"`
	FullName  string         `db:"full_name"`
	AvatarURL sql.NullString `db:"avatar_url"`
}

func (u userRow) summary() model.UserSummary {
	return model.UserSummary{
		ID:          u.ID,
		DisplayName: u.FullName,
		AvatarURL:   u.AvatarURL.String,
	}
}

// PostgresDirectory reads the profile service's users table, with an optional
// Redis read-through cache in front of it.
type PostgresDirectory struct {
	db    *sqlx.DB
	redis *RedisAdapter
	ttl   time.Duration
}

func NewPostgresDirectory(db *sqlx.DB, redisAdapter *RedisAdapter, ttl time.Duration) *PostgresDirectory {
	return &PostgresDirectory{
		db:    db,
		redis: redisAdapter,
		ttl:   ttl,
	}
}

func (d *PostgresDirectory) ResolveUser(ctx context.Context, userID uuid.UUID) (*model.UserSummary, error) {
	users, err := d.ResolveUsers(ctx, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	u, ok := users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *PostgresDirectory) ResolveUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.UserSummary, error) {
	result := make(map[uuid.UUID]model.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	missing := d.fromCache(ctx, userIDs, result)
	if len(missing) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(missing))
	for _, id := range missing {
		ids = append(ids, id.String())
	}

	query, args, err := sq.Select("id", "full_name", "avatar_url").
		From("users").
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"deleted_at": nil}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []userRow
	if err := d.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	for _, row := range rows {
		s := row.summary()
		result[s.ID] = s
		d.toCache(ctx, s)
	}

	return result, nil
}

func (d *PostgresDirectory) fromCache(ctx context.Context, userIDs []uuid.UUID, into map[uuid.UUID]model.UserSummary) []uuid.UUID {
	if d.redis == nil {
		return userIDs
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = identityCachePrefix + id.String()
	}

	values, err := d.redis.MGet(ctx, keys...)
	if err != nil {
		slog.Warn("Identity cache lookup failed", "error", err)
		return userIDs
	}

	var missing []uuid.UUID
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, userIDs[i])
			continue
		}
		var s model.UserSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			missing = append(missing, userIDs[i])
			continue
		}
		into[s.ID] = s
	}
	return missing
}

func (d *PostgresDirectory) toCache(ctx context.Context, s model.UserSummary) {
	if d.redis == nil || d.ttl <= 0 {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := d.redis.Set(ctx, identityCachePrefix+s.ID.String(), data, d.ttl); err != nil {
		slog.Warn("Identity cache write failed", "error", err, "userID", s.ID)
	}
}
