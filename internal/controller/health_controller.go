package controller

import (
	"CollabChatAPI/internal/helper"
	"CollabChatAPI/internal/websocket"
	"net/http"
)

type HealthController struct {
	hub *websocket.Hub
}

func NewHealthController(hub *websocket.Hub) *HealthController {
	return &HealthController{hub: hub}
}

type HealthResponse struct {
	Status string             `json:"status"`
	Hub    websocket.HubStats `json:"hub"`
}

// Healthz godoc
// @Summary      Health Check
// @Tags         health
// @Produce      json
// @Success      200  {object}  helper.ResponseSuccess{data=HealthResponse}
// @Router       /healthz [get]
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	helper.WriteSuccess(w, HealthResponse{
		Status: "ok",
		Hub:    c.hub.Stats(),
	})
}
