package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musedb/cache"
	"musedb/config"
	"musedb/core/auth"
	coreedit "musedb/core/edit"
	"musedb/core/feed"
	"musedb/db"
	"musedb/logger"
	"musedb/model"
	"musedb/repository"
	"musedb/storage"

	"github.com/gorilla/mux"
)

// Start 启动HTTP服务器
func Start() error {
	cfg := config.Load()

	// 初始化日志系统
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100, // 每个日志文件最大100MB
		MaxBackups: 10,
		MaxAge:     30, // 保留30天
		Compress:   true,
	})
	logger.Info("Starting musedb server", logger.String("addr", cfg.ServerAddr))

	auth.InitJWT(cfg.JWTSecret)

	// 目录库（原生SQL）
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}

	// 编辑库（GORM）
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM database", logger.ErrorField(err))
	}
	if err := db.AutoMigrateModels(&model.Edit{}, &model.EditNote{}, &model.EditVote{}); err != nil {
		logger.Fatal("Failed to migrate edit models", logger.ErrorField(err))
	}

	// Redis缓存，连不上时降级为直查数据库
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, running without cache", logger.ErrorField(err))
	} else {
		cache.Init(db.RedisClient)
	}

	// MinIO封面存储
	if err := storage.InitMinio(); err != nil {
		logger.Warn("MinIO unavailable, cover art disabled", logger.ErrorField(err))
	}

	// 编辑事件广播
	hub := feed.NewHub()
	go hub.Run()

	releaseRepo := repository.NewMySQLReleaseRepository(db.DB)
	recordingRepo := repository.NewMySQLRecordingRepository(db.DB)
	creditRepo := repository.NewMySQLArtistCreditRepository(db.DB)
	userRepo := repository.NewMySQLUserRepository(db.DB)
	editRepo := repository.NewGormEditRepository(db.GormDB)
	editSvc := coreedit.NewService(editRepo, db.DB, hub)

	handler := NewAPIHandler(releaseRepo, recordingRepo, creditRepo, userRepo, editRepo, editSvc, cfg)

	// .env热更新：目前只动态调整日志级别
	stopWatch, err := config.Watch(func(c *config.Config) {
		logger.SetLevel(logger.LogLevel(c.LogLevel))
		logger.Info("Config reloaded", logger.String("logLevel", c.LogLevel))
	})
	if err != nil {
		logger.Warn("Config watcher disabled", logger.ErrorField(err))
		stopWatch = func() {}
	}

	router := newRouter(handler, hub)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 优雅关闭
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("HTTP server error", logger.ErrorField(err))
		return err
	case sig := <-quit:
		logger.Info("Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", logger.ErrorField(err))
	}

	stopWatch()
	hub.Stop()
	db.CloseRedis()
	db.CloseGormDB()
	if db.DB != nil {
		db.DB.Close()
	}

	logger.Info("Server stopped")
	return nil
}

// newRouter 注册全部路由
func newRouter(h *APIHandler, hub *feed.Hub) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// 公共接口
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/releases", h.ListReleasesHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/releases/{id:[0-9]+}", h.GetReleaseHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/edits", h.ListEditsHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/edits/feed", h.EditFeedHandler(hub)).Methods(http.MethodGet)
	router.HandleFunc("/api/edits/{id:[0-9]+}", h.GetEditHandler).Methods(http.MethodGet, http.MethodOptions)
	router.PathPrefix("/covers/").HandlerFunc(h.CoverArtHandler).Methods(http.MethodGet, http.MethodOptions)

	// 需要登录的接口
	router.HandleFunc("/api/releases", h.AuthMiddleware(h.CreateReleaseHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/releases/{id:[0-9]+}", h.AuthMiddleware(h.UpdateReleaseHandler)).Methods(http.MethodPut, http.MethodOptions)
	router.HandleFunc("/api/releases/{id:[0-9]+}", h.AuthMiddleware(h.DeleteReleaseHandler)).Methods(http.MethodDelete, http.MethodOptions)
	router.HandleFunc("/api/releases/{id:[0-9]+}/cover", h.AuthMiddleware(h.UploadCoverHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/releases/merge/preview", h.AuthMiddleware(h.PreviewMergeHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/releases/merge", h.AuthMiddleware(h.MergeReleasesHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/edits/{id:[0-9]+}/vote", h.AuthMiddleware(h.VoteHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/edits/{id:[0-9]+}/notes", h.AuthMiddleware(h.AddNoteHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/edits/{id:[0-9]+}/accept", h.AuthMiddleware(h.AcceptEditHandler)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/edits/{id:[0-9]+}/reject", h.AuthMiddleware(h.RejectEditHandler)).Methods(http.MethodPost, http.MethodOptions)

	return router
}

// corsMiddleware 处理跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
