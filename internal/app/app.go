// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/userdesk/internal/auth"
	"github.com/hitoshi/userdesk/internal/cache"
	"github.com/hitoshi/userdesk/internal/config"
	"github.com/hitoshi/userdesk/internal/database"
	"github.com/hitoshi/userdesk/internal/handler"
	"github.com/hitoshi/userdesk/internal/logger"
	"github.com/hitoshi/userdesk/internal/metrics"
	"github.com/hitoshi/userdesk/internal/middleware"
	"github.com/hitoshi/userdesk/internal/mockstore"
	"github.com/hitoshi/userdesk/internal/model"
	"github.com/hitoshi/userdesk/internal/mutation"
	"github.com/hitoshi/userdesk/internal/notify"
	"github.com/hitoshi/userdesk/internal/query"
	"github.com/hitoshi/userdesk/internal/security"
	"github.com/hitoshi/userdesk/internal/store"
	"github.com/hitoshi/userdesk/internal/worker/cleanup"
	"github.com/hitoshi/userdesk/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// store/migrate は管理APIの必須環境変数を要求しない
	if cmd == CommandStore || cmd == CommandMigrate {
		logger.SetupDefault(w)
		cfg := config.LoadStore()
		if cmd == CommandMigrate {
			return runMigrate(cfg)
		}
		return runStore(cfg)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_url", cfg.StoreURL),
	)

	return runServe(cfg)
}

// runServe は管理APIサーバーモードで起動する。
// 全依存関係をワイヤリングし、初回ロードを実行してからHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. エンティティキャッシュとストアクライアントの初期化
	entityCache := cache.New()
	storeClient := store.NewClient(
		&http.Client{Timeout: cfg.StoreTimeout},
		slog.Default(),
		cfg.StoreURL,
	)

	// 3. コアサービスの初期化
	coordinator := mutation.NewCoordinator(entityCache, storeClient, collector, slog.Default())
	queryService := query.NewService(entityCache)

	// 4. 認証サービスの初期化（静的アカウント）
	accounts := []model.Account{
		{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Role: model.RoleAdmin},
		{Username: cfg.ViewerUsername, Password: cfg.ViewerPassword, Role: model.RoleUser},
	}
	sessions := auth.NewMemorySessionStore()
	authService := auth.NewService(accounts, sessions, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})

	// 5. セキュリティサービスの初期化
	avatarGuard := security.NewAvatarGuard()
	avatarFetcher := security.NewAvatarFetcher(avatarGuard)
	sanitizer := security.NewProfileSanitizer()

	// 6. WebSocketハブをキャッシュの購読者として登録
	hub := notify.NewHub(slog.Default())
	unsubscribe := entityCache.Subscribe(hub.BroadcastSnapshot)
	defer unsubscribe()

	// 7. 初回ロード。ストア障害時は空のキャッシュで起動を継続し、
	// バックグラウンドリフレッシャーの次回サイクルに委ねる。
	if err := coordinator.Load(ctx); err != nil {
		slog.Error("初回ロードに失敗しました。空のキャッシュで起動します",
			slog.String("error", err.Error()),
		)
	}

	// 8. バックグラウンドワーカーの起動
	refresher := refresh.NewRefresher(coordinator, slog.Default())
	go refresher.Start(ctx, cfg.RefreshInterval)

	cleanupJob := cleanup.NewCleanupJob(sessions, slog.Default())
	go cleanupJob.Start(ctx, time.Hour)

	// 9. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		MutationRate:    rate.Limit(float64(cfg.RateLimitMutation) / 60.0),
		MutationBurst:   cfg.RateLimitMutation,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		StatusRecorder:    collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService: coordinator,
		Sanitizer:   sanitizer,
		Avatars:     avatarFetcher,

		QueryService: queryService,

		Hub: hub,

		MetricsHandler: metrics.SetupMetricsRoute(registry),
	}

	router := handler.NewRouter(deps)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveWithGracefulShutdown(server, cancel, "admin API server")
}

// runStore は同梱のユーザーストアサーバーモードで起動する。
// DATABASE_URLが設定されている場合はPostgreSQLリポジトリを、
// 未設定の場合はシードデータ入りのインメモリリポジトリを使用する。
func runStore(cfg *config.Config) error {
	var repo mockstore.UserRepository

	if cfg.DatabaseURL != "" {
		ctx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		connectCancel()
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		slog.Info("user store: database connection established")
		repo = mockstore.NewPostgresUserRepo(db)
	} else if cfg.StoreSeedData {
		slog.Info("user store: using seeded in-memory repository")
		repo = mockstore.NewSeededMemoryRepo()
	} else {
		slog.Info("user store: using empty in-memory repository")
		repo = mockstore.NewMemoryUserRepo()
	}

	storeServer := mockstore.NewServer(repo, mockstore.ServerConfig{
		Latency:     cfg.StoreLatency,
		FailureRate: cfg.StoreFailureRate,
	}, slog.Default())

	server := &http.Server{
		Addr:         ":" + cfg.StorePort,
		Handler:      storeServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	return serveWithGracefulShutdown(server, cancel, "user store server")
}

// runMigrate はユーザーストアのデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.Migrate(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// serveWithGracefulShutdown はHTTPサーバーを起動し、
// SIGINT/SIGTERM受信時にグレースフルシャットダウンを行う。
func serveWithGracefulShutdown(server *http.Server, cancel context.CancelFunc, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info(name+" starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down " + name + "...")

	// バックグラウンドワーカーを停止
	cancel()

	ctx, timeoutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer timeoutCancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
