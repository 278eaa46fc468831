package service

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// mapStoreError turns repository errors into AppErrors. AppErrors raised inside
// a transaction pass through unchanged.
func mapStoreError(err error, op string, metrics *Metrics) error {
	var appErr *helper.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrRequestNotFound):
		slog.Info("Request no longer exists", "op", op)
		return helper.NewNotFoundError("Request not found")
	case errors.Is(err, repository.ErrChatNotFound):
		slog.Info("Chat not found", "op", op)
		return helper.NewNotFoundError("Chat not found")
	case errors.Is(err, repository.ErrPairConflict):
		return helper.NewConflictError("A request or chat already exists with this user")
	case errors.Is(err, context.Canceled):
		slog.Info("Request cancelled by client", "op", op)
		return helper.NewClientClosedRequestError()
	default:
		slog.Error("Relationship store failure", "error", err, "op", op)
		metrics.recordStoreFailure(op)
		return helper.NewServiceUnavailableError("")
	}
}

// resolveUsers decorates responses with profiles. Directory failures degrade
// to bare ids instead of failing the call.
func resolveUsers(ctx context.Context, directory adapter.IdentityDirectory, ids []uuid.UUID) map[uuid.UUID]model.UserSummary {
	users, err := directory.ResolveUsers(ctx, uniqueIDs(ids))
	if err != nil {
		slog.Warn("Failed to resolve user profiles", "error", err, "count", len(ids))
		users = make(map[uuid.UUID]model.UserSummary)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			users[id] = model.UserSummary{ID: id}
		}
	}
	return users
}

func summaryPtr(users map[uuid.UUID]model.UserSummary, id uuid.UUID) *model.UserSummary {
	u, ok := users[id]
	if !ok {
		u = model.UserSummary{ID: id}
	}
	return &u
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
