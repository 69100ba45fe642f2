package gateway

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nao1215/rails/pkg/railsclient"
)

// 訪問者セッションの保存先の種類。
const (
	visitorStoreMemory = "memory"
	visitorStoreSQLite = "sqlite"
	visitorStoreRedis  = "redis"
)

// devSessionSecret は開発用のクッキー署名秘密鍵。
const devSessionSecret = "dev-session-secret"

// ErrMissingServiceCredentials はサービスアカウントの認証情報が設定されていないことを表す。
var ErrMissingServiceCredentials = errors.New("RAILS_SERVICE_USERNAME と RAILS_SERVICE_PASSWORD は必須です")

// Config はgatewayサーバーの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// RailsBaseURL はRailsバックエンドのベースURL。
	RailsBaseURL string
	// ServiceUsername はゲートが使用するサービスアカウントのユーザー名。
	ServiceUsername string
	// ServicePassword はサービスアカウントのパスワード。
	ServicePassword string
	// InsecureSkipVerify はRailsバックエンドのTLS証明書検証を無効にするかどうか。
	InsecureSkipVerify bool
	// RailsTimeout はRailsバックエンドへのリクエストごとのタイムアウト。
	RailsTimeout time.Duration
	// RailsUserAgent はRailsバックエンドへ送るUser-Agent。
	RailsUserAgent string
	// TokenParam は訪問者のトークンを受け取るクエリパラメータ名。
	TokenParam string
	// CookieDir はRailsクライアントのクッキーファイルを置くディレクトリ。空ならメモリに保持する。
	CookieDir string
	// SessionSecret は訪問者セッションクッキーの署名秘密鍵。
	SessionSecret string
	// SessionTTL は訪問者セッションの有効期間。
	SessionTTL time.Duration
	// SecureCookie は訪問者セッションクッキーにSecure属性を付けるかどうか。
	SecureCookie bool
	// VisitorStore は訪問者セッションの保存先（memory, sqlite, redis）。
	VisitorStore string
	// VisitorDBPath はSQLiteの保存先パス。
	VisitorDBPath string
	// RedisURL はRedisの接続先URL。
	RedisURL string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:            getEnvOr("PORT", "8080"),
		RailsBaseURL:    getEnvOr("RAILS_BASE_URL", railsclient.DefaultBaseURL),
		ServiceUsername: os.Getenv("RAILS_SERVICE_USERNAME"),
		ServicePassword: os.Getenv("RAILS_SERVICE_PASSWORD"),
		RailsUserAgent:  getEnvOr("RAILS_USER_AGENT", railsclient.DefaultUserAgent),
		TokenParam:      getEnvOr("AUTH_TOKEN_PARAM", "token"),
		CookieDir:       os.Getenv("RAILS_COOKIE_DIR"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		VisitorStore:    getEnvOr("VISITOR_STORE", visitorStoreSQLite),
		VisitorDBPath:   getEnvOr("VISITOR_DB_PATH", "/data/gateway.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
		RedisURL:        getEnvOr("REDIS_URL", "redis://localhost:6379/0"),
		FrontendURL:     getEnvOr("FRONTEND_URL", "http://localhost:3000"),
	}

	var err error
	if cfg.InsecureSkipVerify, err = getEnvBool("RAILS_INSECURE_SKIP_VERIFY", false); err != nil {
		return Config{}, err
	}
	if cfg.SecureCookie, err = getEnvBool("SESSION_COOKIE_SECURE", true); err != nil {
		return Config{}, err
	}
	if cfg.RailsTimeout, err = getEnvDuration("RAILS_TIMEOUT", railsclient.DefaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getEnvDuration("VISITOR_SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	if cfg.ServiceUsername == "" || cfg.ServicePassword == "" {
		return Config{}, ErrMissingServiceCredentials
	}
	if cfg.SessionSecret == "" {
		// 本番環境では必ずSESSION_SECRETを設定すること
		cfg.SessionSecret = devSessionSecret
	}

	switch cfg.VisitorStore {
	case visitorStoreMemory, visitorStoreSQLite, visitorStoreRedis:
	default:
		return Config{}, fmt.Errorf("VISITOR_STORE が不正: %q", cfg.VisitorStore)
	}

	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvBool は環境変数を真偽値として取得する。
func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s の値が不正: %w", key, err)
	}
	return b, nil
}

// getEnvDuration は環境変数を時間（例: "30s"）として取得する。
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s の値が不正: %w", key, err)
	}
	return d, nil
}
