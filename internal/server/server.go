package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	_ "modernc.org/sqlite"

	"github.com/alone-wolf/rutify/internal/auth"
	"github.com/alone-wolf/rutify/internal/config"
	"github.com/alone-wolf/rutify/internal/notify"
	"github.com/alone-wolf/rutify/internal/stream"
	"github.com/alone-wolf/rutify/pkg/middleware"
)

// Server は通知サーバーのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの起動設定。
	cfg *config.Config
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store は通知レコードの永続化ストア。
	store *notify.Store
	// auth はユーザー認証と通知トークンのサービス。
	auth *auth.Service
	// hub はストリーム接続のレジストリ兼ファンアウトエンジン。
	hub *stream.Hub
	// upgrader はWebSocketへのプロトコルアップグレーダー。
	upgrader websocket.Upgrader
	// started はサーバーの起動時刻。
	started time.Time
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg *config.Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := notify.InitSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	if err := auth.InitSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router: router,
		cfg:    cfg,
		db:     sqlDB,
		store:  notify.NewStore(sqlDB),
		auth:   auth.NewService(sqlDB),
		hub:    stream.NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 管理パネル以外のオリジンからの購読も許可する
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		started: time.Now(),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(s.cfg.Addr)
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// サービスバナーとヘルスチェック
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "rutify"})
	})
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "rutify"})
	})
	// レジストリの稼働状況
	s.router.GET("/monitor", s.handleMonitor())

	// 通知の受理（POSTはJSONボディ、GETはクエリパラメータ）
	s.router.POST("/notify", s.handleReceiveNotifyPost())
	s.router.GET("/notify", s.handleReceiveNotifyGet())

	// ストリーム購読
	s.router.GET("/ws", s.handleLegacyStream())
	s.router.GET("/notify/ws", s.handleTokenStream())

	api := s.router.Group("/api")
	{
		api.GET("/notifies", s.handleListNotifies())
		api.GET("/stats", s.handleStats())

		// 削除系はセッショントークン必須
		protected := api.Group("", middleware.SessionAuth(s.cfg.JWTSecret))
		{
			protected.DELETE("/notifies", s.handleDeleteAllNotifies())
			protected.DELETE("/notifies/:id", s.handleDeleteNotifyByID())
		}
	}

	authGroup := s.router.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister())
		authGroup.POST("/login", s.handleLogin())

		// トークン管理はセッショントークン必須
		tokens := authGroup.Group("/tokens", middleware.SessionAuth(s.cfg.JWTSecret))
		{
			tokens.GET("", s.handleListTokens())
			tokens.POST("", s.handleCreateToken())
			tokens.DELETE("/:id", s.handleRevokeToken())
		}
	}
}

// handleMonitor はレジストリの稼働状況を返すハンドラを返す。
func (s *Server) handleMonitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data": gin.H{
				"connections":    s.hub.Len(),
				"published":      s.hub.Published(),
				"uptime_seconds": int64(time.Since(s.started).Seconds()),
			},
		})
	}
}
