package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/rails/pkg/middleware"
	"github.com/nao1215/rails/pkg/railsclient"
	"github.com/nao1215/rails/pkg/visitor"
)

// Server はRails認証ゲートで保護されたアプリケーションのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg Config
	// sessions は訪問者セッションの保存先。
	sessions visitor.Store
	// railsHTTP はリクエストごとのRailsクライアントが共有するHTTPクライアント。
	railsHTTP *http.Client
	// closers はサーバー終了時に閉じるリソース。
	closers []io.Closer
}

// NewServer は新しいgatewayサーバーを生成する。
// 設定に応じて訪問者セッションの保存先を開く。
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	sessions, closer, err := openVisitorStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("訪問者セッションストアの初期化に失敗: %w", err)
	}

	s := newServer(cfg, sessions)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	return s, nil
}

// newServer は訪問者セッションの保存先を指定してサーバーを組み立てる。
func newServer(cfg Config, sessions visitor.Store) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.AccessLogger(gin.DefaultWriter))
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:   router,
		cfg:      cfg,
		sessions: sessions,
		// コネクションプールを共有するためTransportは起動時に1つだけ作る
		railsHTTP: &http.Client{Transport: railsclient.NewTransport(cfg.InsecureSkipVerify)},
	}
	s.setupRoutes()
	return s
}

// openVisitorStore は設定された種類の訪問者セッションストアを開く。
func openVisitorStore(ctx context.Context, cfg Config) (visitor.Store, io.Closer, error) {
	switch cfg.VisitorStore {
	case visitorStoreMemory:
		return visitor.NewMemoryStore(), nil, nil
	case visitorStoreRedis:
		store, err := visitor.OpenRedis(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store, err := visitor.OpenSQLite(ctx, cfg.VisitorDBPath, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		if n, err := store.DeleteExpired(ctx); err != nil {
			log.Printf("[Gateway] 期限切れセッションの削除に失敗: %v", err)
		} else if n > 0 {
			log.Printf("[Gateway] 期限切れセッションを %d 件削除しました", n)
		}
		return store, store, nil
	}
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// Close はサーバーが保持するリソースを閉じる。
func (s *Server) Close() error {
	s.railsHTTP.CloseIdleConnections()

	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// newRailsClient はリクエストごとに使うRailsクライアントを生成する。
func (s *Server) newRailsClient() (*railsclient.Client, error) {
	opts := []railsclient.Option{
		railsclient.WithHTTPClient(s.railsHTTP),
		railsclient.WithTimeout(s.cfg.RailsTimeout),
		railsclient.WithUserAgent(s.cfg.RailsUserAgent),
	}
	if s.cfg.CookieDir != "" {
		store, err := railsclient.OpenFileCookieStore(s.cfg.CookieDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, railsclient.WithCookieStore(store))
	}
	return railsclient.New(s.cfg.RailsBaseURL, opts...)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ゲーム情報（認証不要）
	games := s.router.Group("/api/v1/games")
	{
		games.GET("", s.handleListGames())
		games.GET("/search", s.handleSearchGames())
		games.GET("/:id", s.handleOpenGame())
	}

	// Railsトークンによる認証必須のエンドポイント
	api := s.router.Group("/api/v1")
	api.Use(middleware.RailsAuth(middleware.RailsAuthConfig{
		NewClient:       s.newRailsClient,
		ServiceUsername: s.cfg.ServiceUsername,
		ServicePassword: s.cfg.ServicePassword,
		Sessions:        s.sessions,
		Cookie:          visitor.NewCookieCodec(s.cfg.SessionSecret, s.cfg.SessionTTL, s.cfg.SecureCookie),
		TokenParam:      s.cfg.TokenParam,
	}))
	{
		api.GET("/me", s.handleGetCurrentUser())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// handleListGames はゲーム一覧を返すハンドラを返す。
func (s *Server) handleListGames() gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, ok := bindListOptions(c)
		if !ok {
			return
		}
		s.withRailsClient(c, func(client *railsclient.Client) {
			writeRailsResponse(c, client.ListGames(c.Request.Context(), opts))
		})
	}
}

// handleSearchGames はタイトルまたは作者でゲームを検索するハンドラを返す。
func (s *Server) handleSearchGames() gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, ok := bindListOptions(c)
		if !ok {
			return
		}
		searchBy := railsclient.SearchBy(c.Query("search_by"))
		query := c.Query("q")

		s.withRailsClient(c, func(client *railsclient.Client) {
			resp, err := client.SearchGames(c.Request.Context(), searchBy, query, opts)
			if errors.Is(err, railsclient.ErrInvalidSearchBy) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "search_by は title または author を指定してください"})
				return
			}
			writeRailsResponse(c, resp)
		})
	}
}

// handleOpenGame はゲームの詳細を返すハンドラを返す。
func (s *Server) handleOpenGame() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		s.withRailsClient(c, func(client *railsclient.Client) {
			resp, err := client.OpenGame(c.Request.Context(), gameID)
			if errors.Is(err, railsclient.ErrInvalidGameID) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "ゲームIDは数値で指定してください"})
				return
			}
			writeRailsResponse(c, resp)
		})
	}
}

// handleGetCurrentUser は認証済みユーザーの情報を返すハンドラを返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"token": middleware.GetRailsToken(c),
			"uinfo": middleware.GetRailsUserInfo(c),
		})
	}
}

// withRailsClient はRailsクライアントを生成してfnを実行し、終了後に破棄する。
func (s *Server) withRailsClient(c *gin.Context, fn func(client *railsclient.Client)) {
	client, err := s.newRailsClient()
	if err != nil {
		log.Printf("[Gateway] Railsクライアントの生成に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Railsクライアントの生成に失敗しました"})
		return
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("[Gateway] Railsクライアントのクローズに失敗: %v", err)
		}
	}()
	fn(client)
}

// bindListOptions はクエリパラメータからページングとフィルタを読み取る。
// 不正な値の場合は400を返してfalseを返す。
func bindListOptions(c *gin.Context) (railsclient.ListOptions, bool) {
	var opts railsclient.ListOptions
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{name: "page", dst: &opts.Page},
		{name: "limit", dst: &opts.Limit},
	} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": p.name + " は正の整数で指定してください"})
			return opts, false
		}
		*p.dst = n
	}

	if v := c.Query("only_free"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only_free は true または false で指定してください"})
			return opts, false
		}
		opts.OnlyFree = b
	}
	return opts, true
}

// writeRailsResponse はRailsのレスポンスをクライアントに返す。
// 通信エラーと不正なJSONは502とし、それ以外はバックエンドの内容をそのまま返す。
func writeRailsResponse(c *gin.Context, resp *railsclient.Response) {
	switch resp.Message {
	case railsclient.MessageCurlError, railsclient.MessageInvalidJSON:
		log.Printf("[Gateway] Railsバックエンドのエラー: message=%s errors=%v", resp.Message, resp.Errors)
		c.JSON(http.StatusBadGateway, gin.H{"message": resp.Message, "errors": resp.Errors})
	default:
		c.JSON(http.StatusOK, resp.Fields)
	}
}
