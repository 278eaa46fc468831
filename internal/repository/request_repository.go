package repository

import (
	"CollabChatAPI/internal/entity"
	"CollabChatAPI/internal/helper"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var requestColumns = []string{"id", "sender_id", "receiver_id", "pair_key", "created_at"}

type RequestRepository struct {
	db Scope
}

func NewRequestRepository(db Scope) *RequestRepository {
	return &RequestRepository{
		db: db,
	}
}

func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.PairKey = helper.PairKey(req.SenderID, req.ReceiverID)

	query, args, err := sq.Insert("requests").
		Columns("id", "sender_id", "receiver_id", "pair_key").
		Values(req.ID, req.SenderID, req.ReceiverID, req.PairKey).
		Suffix("RETURNING created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&req.CreatedAt)
	if isUniqueViolation(err, requestsPairKeyConstraint) {
		return ErrPairConflict
	}
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Request, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *RequestRepository) FindBetween(ctx context.Context, a, b uuid.UUID) (*entity.Request, error) {
	return r.getOne(ctx, sq.Eq{"pair_key": helper.PairKey(a, b)})
}

func (r *RequestRepository) getOne(ctx context.Context, where sq.Eq) (*entity.Request, error) {
	query, args, err := sq.Select(requestColumns...).
		From("requests").
		Where(where).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var req entity.Request
	err = r.db.GetContext(ctx, &req, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

func (r *RequestRepository) DeleteByID(ctx context.Context, id uuid.UUID) (*entity.Request, error) {
	query, args, err := sq.Delete("requests").
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, sender_id, receiver_id, pair_key, created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var req entity.Request
	err = r.db.GetContext(ctx, &req, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete request: %w", err)
	}
	return &req, nil
}

func (r *RequestRepository) ListByReceiver(ctx context.Context, userID uuid.UUID) ([]entity.Request, error) {
	return r.list(ctx, sq.Eq{"receiver_id": userID})
}

func (r *RequestRepository) ListBySender(ctx context.Context, userID uuid.UUID) ([]entity.Request, error) {
	return r.list(ctx, sq.Eq{"sender_id": userID})
}

func (r *RequestRepository) list(ctx context.Context, where sq.Eq) ([]entity.Request, error) {
	query, args, err := sq.Select(requestColumns...).
		From("requests").
		Where(where).
		OrderBy("created_at DESC", "id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	requests := []entity.Request{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

func (r *RequestRepository) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := sq.Delete("requests").
		Where(sq.Lt{"created_at": before}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired requests: %w", err)
	}
	return res.RowsAffected()
}
