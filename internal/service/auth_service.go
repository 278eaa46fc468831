package service

import (
	"CollabChatAPI/internal/adapter"
	"CollabChatAPI/internal/config"
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/repository"
	"context"
	"errors"
	"log/slog"
)

// AuthService verifies tokens issued by the external auth service.
type AuthService struct {
	cfg       *config.AppConfig
	repo      *repository.Repository
	directory adapter.IdentityDirectory
}

func NewAuthService(cfg *config.AppConfig, repo *repository.Repository, directory adapter.IdentityDirectory) *AuthService {
	return &AuthService{
		cfg:       cfg,
		repo:      repo,
		directory: directory,
	}
}

func (s *AuthService) VerifyUser(ctx context.Context, tokenString string) (*model.UserDTO, error) {
	claims, err := helper.ParseJWT(s.cfg.JWTSecret, tokenString)
	if err != nil {
		return nil, helper.NewUnauthorizedError("Invalid or expired token")
	}

	if s.repo.Session.IsTokenBlacklisted(ctx, tokenString) {
		return nil, helper.NewUnauthorizedError("Token has been revoked")
	}

	var issuedAt int64
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Unix()
	}
	if s.repo.Session.IsUserRevoked(ctx, claims.UserID, issuedAt) {
		return nil, helper.NewUnauthorizedError("Session has been revoked")
	}

	if recorder, ok := s.directory.(adapter.UserRecorder); ok {
		recorder.Record(model.UserSummary{
			ID:          claims.UserID,
			DisplayName: claims.Name,
			AvatarURL:   claims.Avatar,
		})
	}

	user, err := s.directory.ResolveUser(ctx, claims.UserID)
	if errors.Is(err, adapter.ErrUserNotFound) {
		return nil, helper.NewUnauthorizedError("User not found")
	}
	if err != nil {
		slog.Error("Failed to resolve authenticated user", "error", err, "userID", claims.UserID)
		return nil, helper.NewServiceUnavailableError("")
	}

	return &model.UserDTO{
		ID:       user.ID,
		FullName: user.DisplayName,
		Avatar:   user.AvatarURL,
	}, nil
}
