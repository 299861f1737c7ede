package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"devnet/internal/broker"
	"devnet/internal/chat"
	"devnet/internal/config"
	"devnet/internal/db"
	"devnet/internal/logging"
	"devnet/internal/metrics"
	myMiddleware "devnet/internal/middleware"
	"devnet/internal/post"
	"devnet/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	// 1. Config & Flags
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "http service address")
	flag.Parse()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Server, log *zap.Logger) error {
	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info("connected to postgres")

	if err := database.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database schema initialized")

	// 3. Connect to the broker (Platform Layer)
	b, err := dialBroker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()
	log.Info("connected to broker", zap.String("broker", cfg.Broker))

	m := metrics.New()

	// 4. Users
	userService := user.NewService(user.NewRepository(database.Conn), cfg.JWTSecret)
	userHandler := user.NewHandler(userService, log)

	// 5. Chat: service publishes, hub fans out to websocket subscribers.
	hub := chat.NewHub(b, m, log)
	go hub.Run(ctx)
	go func() {
		if err := hub.SubscribeToBroker(ctx); err != nil && ctx.Err() == nil {
			log.Error("broker subscription ended", zap.Error(err))
		}
	}()
	chatService := chat.NewService(chat.NewRepository(database.Conn), userService, b, m, log)
	chatHandler := chat.NewHandler(ctx, hub, chatService, log)

	// 6. Posts
	postHandler := post.NewHandler(post.NewService(post.NewRepository(database.Conn)), log)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 7. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Conn.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", m.Handler())

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/users", userHandler.ListUsers)
		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Get("/api/users/following", userHandler.Following)
		r.Get("/api/users/{username}", userHandler.Profile)
		r.Post("/api/users/{username}/follow", userHandler.Follow)
		r.Delete("/api/users/{username}/follow", userHandler.Unfollow)

		r.Get("/api/chat/{username}", chatHandler.GetChat)
		r.Post("/api/chat/messages", chatHandler.NewMsg)

		r.Post("/api/posts", postHandler.Create)
		r.Get("/api/feed", postHandler.Feed)

		// WebSocket (Real-time)
		r.Get("/ws", chatHandler.ServeWs)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func dialBroker(ctx context.Context, cfg config.Server, log *zap.Logger) (broker.Broker, error) {
	switch cfg.Broker {
	case config.BrokerNATS:
		return broker.DialNATS(cfg.NatsURL, log)
	default:
		return broker.DialRedis(ctx, cfg.RedisAddr, log)
	}
}
