package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/gallery/internal/config"
	"github.com/nao1215/gallery/internal/picasa"
	"github.com/nao1215/gallery/internal/store"
	"github.com/nao1215/gallery/pkg/middleware"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server はギャラリーゲートウェイのHTTPサーバー。
type Server struct {
	// cfg はサーバー設定。
	cfg *config.Config
	// logger は構造化ロガー。
	logger *slog.Logger
	// router はGinのHTTPルーター。
	router *gin.Engine
	// db はSQLiteデータベース接続。
	db *sql.DB
	// users はユーザーの永続化。
	users *store.UserRepository
	// tokens はアルバムアカウントのOAuth2トークンの永続化。
	tokens *store.TokenRepository
	// events はアクティビティログの永続化。
	events *store.EventRepository
	// album はリモートのフォトアルバムサービスのクライアント。
	album *picasa.Client
	// registry はPrometheusメトリクスのレジストリ。
	registry *prometheus.Registry
}

// NewServer は新しいゲートウェイサーバーを生成する。
// データベースを開いてマイグレーションを適用し、保存済みのアルバムトークンがあれば読み込む。
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("データベースの初期化に失敗: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		users:  store.NewUserRepository(db),
		tokens: store.NewTokenRepository(db),
		events: store.NewEventRepository(db),
		album: picasa.New(picasa.Config{
			ClientID:     cfg.Picasa.ClientID,
			ClientSecret: cfg.Picasa.ClientSecret,
			RedirectURI:  cfg.Picasa.RedirectURI,
			APIURL:       cfg.Picasa.APIURL,
			AuthURL:      cfg.Picasa.AuthURL,
			TokenURL:     cfg.Picasa.TokenURL,
		}),
		registry: prometheus.NewRegistry(),
	}

	if err := s.restoreAccount(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	s.logger.Info("アルバムサービスの接続先", "api_url", s.album.APIURL())

	n, err := s.users.Count(ctx)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ユーザー数の取得に失敗: %w", err)
	}
	if n == 0 {
		s.logger.Warn("ユーザーが登録されていません。/setup または /authsetup で作成してください")
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(middleware.NewHTTPMetrics(s.registry)))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	s.router = router
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// Run はHTTPサーバーを起動し、ctxが終了するとグレースフルにシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバーを停止")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ユーザー管理（認証不要）
	s.router.GET("/setup", s.handleSetup())
	s.router.POST("/authsetup", s.handleAuthSetup())
	s.router.GET("/users", s.handleListUsers())

	// アルバムアカウントの連携（認証不要）
	auth := s.router.Group("/auth/picasa")
	{
		auth.GET("", s.handlePicasaLogin())
		auth.GET("/callback", s.handlePicasaCallback())
	}

	s.router.POST("/api/authenticate", s.handleAuthenticate())

	// アップロードはトークン検証でボディを読む前にサイズを制限する
	s.router.POST("/api/images",
		middleware.BodyLimit(maxUploadBody),
		middleware.TokenAuth(s.cfg.Auth.JWTSecret),
		s.handlePostImage(),
	)

	// 認証必須のAPIエンドポイント
	api := s.router.Group("/api")
	api.Use(middleware.TokenAuth(s.cfg.Auth.JWTSecret))
	{
		api.GET("/", s.handleWelcome())

		api.GET("/listallimages", s.handleListAllImages())
		api.GET("/listfeaturedimages", s.handleListFeaturedImages())
		api.GET("/listalbums", s.handleListAlbums())
		api.DELETE("/images/:album_id/:photo_id", s.handleDeleteImage())

		api.GET("/events", middleware.RequireAdmin(), s.handleListEvents())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gallery"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// respondError は {success:false, message} の形式でエラーレスポンスを返す。
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}
