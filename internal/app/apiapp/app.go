package apiapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/bus"
	"github.com/pacheco20222/DogMatch-backend/internal/config"
	"github.com/pacheco20222/DogMatch-backend/internal/gateway"
	"github.com/pacheco20222/DogMatch-backend/internal/jobs/expirer"
	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
	redrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/redis"
	authsvc "github.com/pacheco20222/DogMatch-backend/internal/services/auth"
	chatsvc "github.com/pacheco20222/DogMatch-backend/internal/services/chat"
	matchessvc "github.com/pacheco20222/DogMatch-backend/internal/services/matches"
	ratesvc "github.com/pacheco20222/DogMatch-backend/internal/services/rate"
	swipesvc "github.com/pacheco20222/DogMatch-backend/internal/services/swipes"
)

type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool        *pgxpool.Pool
	redisClient *goredis.Client
	gw          *gateway.Gateway
	expireJob   *expirer.Job
	server      *http.Server
	router      chi.Router

	cancelBackground context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Realtime fan-out and rate limiting degrade without Redis, the
		// durable swipe/match path still works.
		logger.Warn("redis unavailable, starting degraded", zap.Error(err))
	}

	matchRepo := pgrepo.NewMatchRepo(pool)
	profileRepo := pgrepo.NewProfileRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)
	rateRepo := redrepo.NewRateRepo(redisClient)

	eventBus := bus.NewRedisBus(redisClient, logger)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Rate.SwipesPerMinute, cfg.Rate.SwipesPer10Sec)

	swipeService := swipesvc.NewService(swipesvc.Dependencies{
		Pool:         pool,
		ProfileStore: profileRepo,
		MatchStore:   matchRepo,
		RateLimiter:  rateLimiter,
		Publisher:    eventBus,
		Logger:       logger,
	}, swipesvc.Config{
		PendingTTL: cfg.Match.PendingTTL,
	})

	matchService := matchessvc.NewService(matchessvc.Dependencies{
		Pool:       pool,
		MatchStore: matchRepo,
		Logger:     logger,
	})

	chatService := chatsvc.NewService(chatsvc.Dependencies{
		Pool:         pool,
		MatchStore:   matchRepo,
		MessageStore: messageRepo,
		Publisher:    eventBus,
		Logger:       logger,
	}, chatsvc.Config{
		MaxContentLen: cfg.Chat.MaxContentLen,
		PageLimit:     cfg.Chat.PageLimit,
	})

	gw := gateway.New(gateway.Dependencies{
		Bus:    eventBus,
		Peers:  matchRepo,
		Logger: logger,
	})

	expireJob := expirer.New(matchRepo, cfg.Match.SweepInterval, logger)

	router := chi.NewRouter()
	ApplyMiddlewares(router, logger)
	RegisterRoutes(router, Dependencies{
		Config:       cfg,
		Logger:       logger,
		JWTManager:   jwtManager,
		SwipeService: swipeService,
		MatchService: matchService,
		ChatService:  chatService,
		Gateway:      gw,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redisClient: redisClient,
		gw:          gw,
		expireJob:   expireJob,
		server:      server,
		router:      router,
	}, nil
}

func (a *App) Run() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	a.cancelBackground = cancel

	go func() {
		if err := a.gw.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("realtime gateway stopped", zap.Error(err))
		}
	}()
	go a.expireJob.Start(bgCtx)

	a.logger.Info("http server listening", zap.String("addr", a.cfg.HTTP.Addr))

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.cancelBackground != nil {
		a.cancelBackground()
	}

	err := a.server.Shutdown(ctx)

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redisClient != nil {
		if cerr := a.redisClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

// Handler exposes the assembled router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.router
}
