package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/config"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/handlers"
	httpx "github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/http"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/repo"
	"github.com/SteamVC/SteamVC_Chat/backend/api-server/internal/service"
)

func main() {
	cfg := config.Load()
	log := cfg.NewLogger()

	graph, requests, keys, err := newUserStores(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to set up friend store")
	}
	rooms, closeRooms, err := newRoomRegistry(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up room registry")
	}
	defer closeRooms()

	friends := service.NewFriendService(graph, requests, log)
	coord := service.NewSessionCoordinator(graph, rooms, log)
	keySvc := service.NewKeyService(keys, log)
	ws := handlers.NewWebSocketHandler(coord, cfg.AllowedOrigin, log)
	router := httpx.NewRouter(
		handlers.NewFriendHandler(friends, log),
		handlers.NewChatHandler(coord, ws, log),
		handlers.NewKeyHandler(keySvc, log),
		ws,
		cfg.AllowedOrigin,
		log,
	)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown用のシグナルチャネル
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithFields(logrus.Fields{
			"addr":          cfg.APIAddr,
			"friend_store":  cfg.FriendStore,
			"room_registry": cfg.RoomRegistry,
		}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-sigChan
	log.Info("shutdown signal received, shutting down gracefully...")

	// 30秒のタイムアウトでGraceful Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	log.Info("server stopped")
}

// newUserStores は設定に従ってフレンド関係・申請・公開鍵の保存先を用意します
func newUserStores(cfg config.Config) (repo.FriendGraph, repo.FriendRequestStore, repo.PublicKeyStore, error) {
	if cfg.FriendStore != config.StoreSQLite {
		g := repo.NewMemoryFriendGraph()
		return g, repo.NewMemoryRequestStore(g), repo.NewMemoryKeyStore(), nil
	}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLiteは書き込みが1接続ずつなので、接続を1本に絞ってロック競合を避ける
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	r, err := repo.NewGormFriendRepo(db)
	if err != nil {
		return nil, nil, nil, err
	}
	keys, err := repo.NewGormKeyStore(db)
	if err != nil {
		return nil, nil, nil, err
	}
	return r, r, keys, nil
}

// newRoomRegistry は設定に従ってルーム対応表の保存先を用意します
func newRoomRegistry(cfg config.Config, log *logrus.Logger) (repo.RoomRegistry, func(), error) {
	if cfg.RoomRegistry != config.StoreRedis {
		return repo.NewMemoryRoomRegistry(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		PoolSize:     10,              // 接続プールサイズ
		MinIdleConns: 5,               // 最小アイドル接続数
		MaxRetries:   3,               // リトライ回数
		DialTimeout:  5 * time.Second, // 接続タイムアウト
		ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
		WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
		PoolTimeout:  4 * time.Second, // プールからの取得タイムアウト
	})

	// Redis接続確認
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("connected to redis")

	return repo.NewRedisRoomRegistry(rdb), func() { rdb.Close() }, nil
}
