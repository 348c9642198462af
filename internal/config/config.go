// Package config はアプリケーションの設定を管理します
// 環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	defaultAPIAddr      = ":8080"            // APIサーバーのデフォルトリッスンアドレス
	defaultRedisAddr    = "localhost:6379"   // Redisのデフォルト接続先
	defaultSQLitePath   = "database/main.db" // SQLiteのデフォルトファイル
	defaultFriendStore  = StoreMemory
	defaultRoomRegistry = StoreMemory
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// バックエンドの種類
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:3002",
}

// Config はアプリケーションの設定を保持します
type Config struct {
	APIAddr       string   // APIサーバーのリッスンアドレス
	RedisAddr     string   // Redisの接続先
	AllowedOrigin []string // CORSで許可するオリジン一覧
	FriendStore   string   // フレンド情報の保存先（memory / sqlite）
	SQLitePath    string   // FriendStore=sqlite のときのDBファイル
	RoomRegistry  string   // ルーム対応表の保存先（memory / redis）
	LogLevel      logrus.Level
	LogJSON       bool
}

// Load は環境変数から設定を読み込みます
// 環境変数が設定されていない場合はデフォルト値を使用します
func Load() Config {
	return Config{
		APIAddr:       envOr("API_ADDR", defaultAPIAddr),
		RedisAddr:     envOr("REDIS_ADDR", defaultRedisAddr),
		AllowedOrigin: envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		FriendStore:   envChoice("FRIEND_STORE", defaultFriendStore, StoreMemory, StoreSQLite),
		SQLitePath:    envOr("SQLITE_PATH", defaultSQLitePath),
		RoomRegistry:  envChoice("ROOM_REGISTRY", defaultRoomRegistry, StoreMemory, StoreRedis),
		LogLevel:      envLevel("LOG_LEVEL", defaultLogLevel),
		LogJSON:       envChoice("LOG_FORMAT", defaultLogFormat, "text", "json") == "json",
	}
}

// envOr は環境変数から文字列を取得します
// 環境変数が設定されていない場合はデフォルト値を返します
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envChoice は許可された値のいずれかを返します
// 許可されていない値の場合は警告を出してデフォルト値を返します
func envChoice(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	logrus.Warnf("invalid %s=%s, fallback to default (%s)", key, v, def)
	return def
}

func envLevel(key, def string) logrus.Level {
	v := envOr(key, def)
	lvl, err := logrus.ParseLevel(v)
	if err != nil {
		logrus.Warnf("invalid %s=%s, fallback to default (%s)", key, v, def)
		lvl, _ = logrus.ParseLevel(def)
	}
	return lvl
}

// envCSV は環境変数からカンマ区切りの文字列リストを取得します
// 環境変数が設定されていない、または空の場合はデフォルト値を返します
func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

// NewLogger は設定に従ってlogrusのロガーを作成します
func (c Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(c.LogLevel)
	if c.LogJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
