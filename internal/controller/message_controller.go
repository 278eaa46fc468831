package controller

import (
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/middleware"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/service"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MessageController struct {
	messageService *service.MessageService
}

func NewMessageController(messageService *service.MessageService) *MessageController {
	return &MessageController{
		messageService: messageService,
	}
}

// SendMessage godoc
// @Summary      Send Message
// @Description  Send a message to a chat. Room members connected over websocket receive it as newMessage.
// @Tags         message
// @Accept       json
// @Produce      json
// @Param        chatID path string true "Chat ID (UUID)"
// @Param        request body model.SendMessageRequest true "Send Message Request"
// @Success      201  {object}  helper.ResponseSuccess{data=model.MessageResponse}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      429  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/chats/{chatID}/messages [post]
func (c *MessageController) SendMessage(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid Chat ID"))
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}
	req.ChatID = chatID

	resp, err := c.messageService.SendMessage(r.Context(), userContext.ID, req, nil)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteCreated(w, resp)
}

// GetMessages godoc
// @Summary      Get Messages
// @Description  Get one page of a chat's history, newest first. Page 1 holds the most recent messages.
// @Tags         message
// @Produce      json
// @Param        chatID path string true "Chat ID (UUID)"
// @Param        page query int false "Page number, starting at 1"
// @Param        page_size query int false "Messages per page (default 20, max 50)"
// @Success      200  {object}  helper.ResponseWithPage{data=[]model.MessageResponse}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/chats/{chatID}/messages [get]
func (c *MessageController) GetMessages(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid Chat ID"))
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid page"))
		return
	}
	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid page_size"))
		return
	}

	resp, err := c.messageService.GetMessages(r.Context(), userContext.ID, model.GetMessagesRequest{
		ChatID:   chatID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccessWithPage(w, resp.Messages, resp.Page, resp.PageSize, resp.HasNextPage)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
