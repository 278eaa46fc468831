package controller

import (
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/middleware"
	"CollabChatAPI/internal/model"
	"CollabChatAPI/internal/service"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type RequestController struct {
	requestService *service.RequestService
}

func NewRequestController(requestService *service.RequestService) *RequestController {
	return &RequestController{
		requestService: requestService,
	}
}

// GetRelationship godoc
// @Summary      Get Relationship
// @Description  Get the relationship between the current user and another user: none, pending or connected.
// @Tags         request
// @Produce      json
// @Param        userID path string true "Other User ID (UUID)"
// @Success      200  {object}  helper.ResponseSuccess{data=model.RelationshipResponse}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/relationships/{userID} [get]
func (c *RequestController) GetRelationship(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	otherID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid User ID"))
		return
	}

	resp, err := c.requestService.GetRelationship(r.Context(), userContext.ID, otherID)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// SendRequest godoc
// @Summary      Send Collaboration Request
// @Description  Send a collaboration request. If the target already sent one to you, it is accepted and the new chat is returned instead.
// @Tags         request
// @Accept       json
// @Produce      json
// @Param        request body model.SendRequestRequest true "Send Request"
// @Success      200  {object}  helper.ResponseSuccess{data=model.SendRequestResponse}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      409  {object}  helper.ResponseError
// @Failure      429  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/requests [post]
func (c *RequestController) SendRequest(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	var req model.SendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}

	resp, err := c.requestService.SendRequest(r.Context(), userContext.ID, req)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// ListIncomingRequests godoc
// @Summary      List Incoming Requests
// @Description  List pending requests sent to the current user, with sender profiles.
// @Tags         request
// @Produce      json
// @Success      200  {object}  helper.ResponseSuccess{data=[]model.IncomingRequestResponse}
// @Failure      401  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/requests/incoming [get]
func (c *RequestController) ListIncomingRequests(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	resp, err := c.requestService.ListIncomingRequests(r.Context(), userContext.ID)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// ListOutgoingRequests godoc
// @Summary      List Outgoing Requests
// @Description  List pending requests sent by the current user, with receiver profiles.
// @Tags         request
// @Produce      json
// @Success      200  {object}  helper.ResponseSuccess{data=[]model.IncomingRequestResponse}
// @Failure      401  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/requests/outgoing [get]
func (c *RequestController) ListOutgoingRequests(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	resp, err := c.requestService.ListOutgoingRequests(r.Context(), userContext.ID)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// AcceptRequest godoc
// @Summary      Accept Request
// @Description  Accept a pending request. Creates the direct chat between both users.
// @Tags         request
// @Produce      json
// @Param        requestID path string true "Request ID (UUID)"
// @Success      200  {object}  helper.ResponseSuccess{data=model.ChatResponse}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/requests/{requestID}/accept [post]
func (c *RequestController) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid Request ID"))
		return
	}

	resp, err := c.requestService.AcceptRequest(r.Context(), userContext.ID, requestID)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// RejectRequest godoc
// @Summary      Reject Request
// @Description  Reject a pending request sent to the current user.
// @Tags         request
// @Produce      json
// @Param        requestID path string true "Request ID (UUID)"
// @Success      200  {object}  helper.ResponseSuccess
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/requests/{requestID}/reject [post]
func (c *RequestController) RejectRequest(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid Request ID"))
		return
	}

	if err := c.requestService.RejectRequest(r.Context(), userContext.ID, requestID); err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, nil)
}

// CancelRequest godoc
// @Summary      Cancel Request
// @Description  Withdraw a pending request sent by the current user.
// @Tags         request
// @Produce      json
// @Param        requestID path string true "Request ID (UUID)"
// @Success      200  {object}  helper.ResponseSuccess
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/requests/{requestID} [delete]
func (c *RequestController) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid Request ID"))
		return
	}

	if err := c.requestService.CancelRequest(r.Context(), userContext.ID, requestID); err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, nil)
}
