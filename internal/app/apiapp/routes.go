package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/config"
	"github.com/pacheco20222/DogMatch-backend/internal/gateway"
	authsvc "github.com/pacheco20222/DogMatch-backend/internal/services/auth"
	chatsvc "github.com/pacheco20222/DogMatch-backend/internal/services/chat"
	matchessvc "github.com/pacheco20222/DogMatch-backend/internal/services/matches"
	swipesvc "github.com/pacheco20222/DogMatch-backend/internal/services/swipes"
	"github.com/pacheco20222/DogMatch-backend/internal/transport/http/handlers"
)

type Dependencies struct {
	Config       config.Config
	Logger       *zap.Logger
	JWTManager   *authsvc.JWTManager
	SwipeService *swipesvc.Service
	MatchService *matchessvc.Service
	ChatService  *chatsvc.Service
	Gateway      *gateway.Gateway
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	swipeHandler := handlers.NewSwipeHandler(deps.SwipeService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchService)
	messagesHandler := handlers.NewMessagesHandler(deps.ChatService)
	realtimeHandler := handlers.NewRealtimeHandler(deps.Gateway, deps.Logger)

	authMW := AuthMiddleware(deps.JWTManager)

	r.Get("/healthz", healthHandler.Handle)

	r.With(authMW).Post("/swipe", swipeHandler.Handle)

	r.With(authMW).Get("/matches", matchesHandler.List)
	r.With(authMW).Get("/matches/pending-likes", matchesHandler.PendingLikes)
	r.With(authMW).Get("/matches/stats", matchesHandler.Stats)
	r.With(authMW).Get("/matches/{matchID}", matchesHandler.Get)
	r.With(authMW).Post("/matches/{matchID}/unmatch", matchesHandler.Unmatch)
	r.With(authMW).Post("/matches/{matchID}/archive", matchesHandler.SetArchived)

	r.With(authMW).Get("/matches/{matchID}/messages", messagesHandler.List)
	r.With(authMW).Post("/matches/{matchID}/messages", messagesHandler.Send)
	r.With(authMW).Post("/messages/read", messagesHandler.MarkRead)
	r.With(authMW).Delete("/messages/{messageID}", messagesHandler.Delete)
	r.With(authMW).Get("/messages/unread-total", messagesHandler.UnreadTotal)
	r.With(authMW).Get("/conversations", messagesHandler.Conversations)

	r.With(authMW).Get("/ws", realtimeHandler.Handle)
}
