package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/gateway"
	authsvc "github.com/pacheco20222/DogMatch-backend/internal/services/auth"
)

// RealtimeHandler upgrades authenticated clients into the gateway.
type RealtimeHandler struct {
	gateway *gateway.Gateway
	logger  *zap.Logger
}

func NewRealtimeHandler(g *gateway.Gateway, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{gateway: g, logger: logger}
}

func (h *RealtimeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.gateway == nil {
		writeInternal(w, "REALTIME_UNAVAILABLE", "realtime gateway is unavailable")
		return
	}

	gateway.ServeWS(h.gateway, identity.OwnerID, w, r, h.logger)
}
