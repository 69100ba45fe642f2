package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/rails/pkg/railsclient"
)

// setRequiredEnv は必須の環境変数を設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RAILS_SERVICE_USERNAME", "service")
	t.Setenv("RAILS_SERVICE_PASSWORD", "secret")
}

// TestLoadConfig は環境変数からの設定読み込みを検証する。
// t.Setenvを使うため並列実行しない。
func TestLoadConfig(t *testing.T) {
	t.Run("未設定の項目にデフォルト値が使われること", func(t *testing.T) {
		setRequiredEnv(t)
		for _, key := range []string{
			"PORT", "RAILS_BASE_URL", "RAILS_INSECURE_SKIP_VERIFY", "SESSION_COOKIE_SECURE",
			"RAILS_TIMEOUT", "VISITOR_SESSION_TTL", "SESSION_SECRET", "VISITOR_STORE",
			"RAILS_USER_AGENT", "AUTH_TOKEN_PARAM",
		} {
			t.Setenv(key, "")
		}

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q", cfg.Port)
		}
		if cfg.RailsBaseURL != railsclient.DefaultBaseURL {
			t.Errorf("RailsBaseURL = %q", cfg.RailsBaseURL)
		}
		if cfg.InsecureSkipVerify {
			t.Error("InsecureSkipVerify はデフォルトで無効であるべき")
		}
		if !cfg.SecureCookie {
			t.Error("SecureCookie はデフォルトで有効であるべき")
		}
		if cfg.RailsTimeout != railsclient.DefaultTimeout {
			t.Errorf("RailsTimeout = %v", cfg.RailsTimeout)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Errorf("SessionTTL = %v", cfg.SessionTTL)
		}
		if cfg.SessionSecret != devSessionSecret {
			t.Errorf("SessionSecret = %q", cfg.SessionSecret)
		}
		if cfg.VisitorStore != visitorStoreSQLite {
			t.Errorf("VisitorStore = %q", cfg.VisitorStore)
		}
		if cfg.RailsUserAgent != railsclient.DefaultUserAgent || cfg.TokenParam != "token" {
			t.Errorf("RailsUserAgent = %q, TokenParam = %q", cfg.RailsUserAgent, cfg.TokenParam)
		}
	})

	t.Run("環境変数の値が反映されること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORT", "9090")
		t.Setenv("RAILS_BASE_URL", "https://rails.example.com")
		t.Setenv("RAILS_INSECURE_SKIP_VERIFY", "true")
		t.Setenv("SESSION_COOKIE_SECURE", "false")
		t.Setenv("RAILS_TIMEOUT", "5s")
		t.Setenv("VISITOR_SESSION_TTL", "30m")
		t.Setenv("SESSION_SECRET", "prod-secret")
		t.Setenv("VISITOR_STORE", "redis")
		t.Setenv("RAILS_USER_AGENT", "RailsGateway/2.0")
		t.Setenv("AUTH_TOKEN_PARAM", "rails_token")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Port != "9090" || cfg.RailsBaseURL != "https://rails.example.com" {
			t.Errorf("Port = %q, RailsBaseURL = %q", cfg.Port, cfg.RailsBaseURL)
		}
		if !cfg.InsecureSkipVerify || cfg.SecureCookie {
			t.Errorf("InsecureSkipVerify = %v, SecureCookie = %v", cfg.InsecureSkipVerify, cfg.SecureCookie)
		}
		if cfg.RailsTimeout != 5*time.Second || cfg.SessionTTL != 30*time.Minute {
			t.Errorf("RailsTimeout = %v, SessionTTL = %v", cfg.RailsTimeout, cfg.SessionTTL)
		}
		if cfg.SessionSecret != "prod-secret" || cfg.VisitorStore != visitorStoreRedis {
			t.Errorf("SessionSecret = %q, VisitorStore = %q", cfg.SessionSecret, cfg.VisitorStore)
		}
		if cfg.RailsUserAgent != "RailsGateway/2.0" || cfg.TokenParam != "rails_token" {
			t.Errorf("RailsUserAgent = %q, TokenParam = %q", cfg.RailsUserAgent, cfg.TokenParam)
		}
	})

	t.Run("サービスアカウントが未設定の場合エラーになること", func(t *testing.T) {
		t.Setenv("RAILS_SERVICE_USERNAME", "")
		t.Setenv("RAILS_SERVICE_PASSWORD", "secret")

		if _, err := LoadConfig(); !errors.Is(err, ErrMissingServiceCredentials) {
			t.Errorf("LoadConfig() error = %v, want %v", err, ErrMissingServiceCredentials)
		}
	})

	t.Run("不正な値の場合エラーになること", func(t *testing.T) {
		tests := []struct {
			key   string
			value string
		}{
			{key: "RAILS_INSECURE_SKIP_VERIFY", value: "maybe"},
			{key: "RAILS_TIMEOUT", value: "thirty"},
			{key: "VISITOR_SESSION_TTL", value: "1day"},
			{key: "VISITOR_STORE", value: "postgres"},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.key, func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv(tt.key, tt.value)

				if _, err := LoadConfig(); err == nil {
					t.Errorf("%s=%s でエラーにならなかった", tt.key, tt.value)
				}
			})
		}
	})
}

// TestNewServerMemoryStore はメモリストア指定でサーバーが起動できることを検証する。
func TestNewServerMemoryStore(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := NewServer(ctx, Config{
		RailsBaseURL:    "http://127.0.0.1:1",
		ServiceUsername: "service",
		ServicePassword: "secret",
		SessionSecret:   "test",
		SessionTTL:      time.Hour,
		VisitorStore:    visitorStoreMemory,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// TestNewServerSQLiteStore はSQLiteストア指定でサーバーが起動できることを検証する。
func TestNewServerSQLiteStore(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := NewServer(ctx, Config{
		RailsBaseURL:    "http://127.0.0.1:1",
		ServiceUsername: "service",
		ServicePassword: "secret",
		SessionSecret:   "test",
		SessionTTL:      time.Hour,
		VisitorStore:    visitorStoreSQLite,
		VisitorDBPath:   t.TempDir() + "/gateway.db",
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
