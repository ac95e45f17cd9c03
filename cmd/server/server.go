package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"chat-server/services/chat-api/internal/config"
	"chat-server/services/chat-api/internal/domain/completion"
	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/domain/tokenizer"
	"chat-server/services/chat-api/internal/domain/user"
	"chat-server/services/chat-api/internal/infrastructure/auth"
	"chat-server/services/chat-api/internal/infrastructure/crontab"
	"chat-server/services/chat-api/internal/infrastructure/database"
	"chat-server/services/chat-api/internal/infrastructure/database/repository/conversationrepo"
	"chat-server/services/chat-api/internal/infrastructure/database/repository/userrepo"
	"chat-server/services/chat-api/internal/infrastructure/database/transaction"
	"chat-server/services/chat-api/internal/infrastructure/logger"
	"chat-server/services/chat-api/internal/infrastructure/observability"
	"chat-server/services/chat-api/internal/infrastructure/ratelimit"
	"chat-server/services/chat-api/internal/interfaces/httpserver"
	"chat-server/services/chat-api/internal/interfaces/httpserver/handlers/chathandler"
	"chat-server/services/chat-api/internal/interfaces/httpserver/handlers/conversationhandler"
	chatroute "chat-server/services/chat-api/internal/interfaces/httpserver/routes/v1/chat"
	conversationroute "chat-server/services/chat-api/internal/interfaces/httpserver/routes/v1/conversation"
	v1 "chat-server/services/chat-api/internal/interfaces/httpserver/routes/v1"
	"chat-server/services/chat-api/internal/utils/httpclients"
	"chat-server/services/chat-api/internal/utils/httpclients/chat"

	_ "net/http/pprof"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	cfg        *config.Config
}

func init() {
	logger.GetLogger()
	config.Load()
}

func (application *Application) Start() {
	background := context.Background()
	ctx, cancel := context.WithCancel(background)
	defer cancel()

	var eg errgroup.Group
	eg.Go(func() error {
		err := http.ListenAndServe("0.0.0.0:6060", nil)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(fmt.Sprintf(":%d", application.cfg.MetricsPort), mux)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.crontab.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.httpServer.Run()
		if err != nil {
			cancel()
		}
		return err
	})

	if err := eg.Wait(); err != nil {
		panic(err)
	}
}

func newApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.GetLogger()

	writeDSN := cfg.DatabaseURL
	if cfg.DBPostgresqlWriteDSN != "" {
		writeDSN = cfg.DBPostgresqlWriteDSN
	}
	db, err := database.NewDB(writeDSN, cfg.DBPostgresqlRead1DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migration(db, "chat_api."); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	txDB := transaction.NewDatabase(db)

	userRepo := userrepo.NewUserGormRepository(db)
	convRepo := conversationrepo.NewConversationGormRepository(txDB)
	msgRepo := conversationrepo.NewMessageGormRepository(txDB)

	estimator := tokenizer.NewHeuristicEstimator()
	userService := user.NewService(userRepo)
	convService := conversation.NewService(convRepo)
	msgService := conversation.NewMessageService(msgRepo, convRepo, txDB, estimator)
	replaceService := conversation.NewReplaceService(msgRepo, convRepo, txDB, estimator)

	limiter := newLimiter(cfg)

	orchestrator := completion.NewOrchestrator(convService, msgService, limiter, log, completion.Config{
		SystemPrompt:    cfg.SystemPrompt,
		PersistAttempts: cfg.PersistAttempts,
		PersistBackoff:  cfg.PersistBackoff,
	})

	completionClient := chat.NewCompletionClient(
		httpclients.NewClient("completion"),
		"completion",
		cfg.CompletionBaseURL,
		cfg.CompletionTimeout,
	)

	jwksURL, err := cfg.ResolveJWKSURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve jwks url: %w", err)
	}
	validator, err := auth.NewJWTValidator(ctx, jwksURL, cfg.Issuer, cfg.Audience, cfg.RefreshJWKSInterval, 30*time.Second, log)
	if err != nil {
		return nil, fmt.Errorf("init jwt validator: %w", err)
	}

	chatHandler := chathandler.NewChatHandler(orchestrator, userService, completionClient)
	convHandler := conversationhandler.NewConversationHandler(convService, msgService, replaceService, userService)

	v1Route := v1.NewV1Route(
		chatroute.NewChatRoute(chatHandler),
		conversationroute.NewConversationRoute(convHandler),
	)

	server := httpserver.NewHttpServer(v1Route, validator, limiter, log, cfg)

	return &Application{
		httpServer: server,
		crontab:    crontab.NewCrontab(convRepo, msgRepo),
		cfg:        cfg,
	}, nil
}

// newLimiter picks Redis when configured so quotas hold across replicas, and
// falls back to the in-process limiter otherwise.
func newLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return ratelimit.NewRedisLimiter(client, cfg.RateLimitQuota, cfg.RateLimitWindow)
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimitQuota, cfg.RateLimitWindow)
}

func main() {
	ctx := context.Background()
	log := logger.GetLogger()

	cfg := config.GetGlobal()
	if cfg == nil {
		log.Fatal().Msg("config not loaded")
	}

	otelShutdown, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	application, err := newApplication(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}

	application.Start()
}
