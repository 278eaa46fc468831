package service

import (
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/repository"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"Request Not Found", fmt.Errorf("delete request: %w", repository.ErrRequestNotFound), http.StatusNotFound},
		{"Chat Not Found", repository.ErrChatNotFound, http.StatusNotFound},
		{"Pair Conflict", repository.ErrPairConflict, http.StatusConflict},
		{"App Error Passes Through", helper.NewForbiddenError("nope"), http.StatusForbidden},
		{"Cancelled Context", fmt.Errorf("list messages: %w", context.Canceled), helper.StatusClientClosedRequest},
		{"Store Failure", errors.New("connection reset"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapStoreError(tt.err, "test", nil)
			assert.True(t, helper.IsAppErrorCode(err, tt.code), "got %v", err)
		})
	}
}
