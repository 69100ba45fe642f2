package middleware

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/rails/pkg/railsclient"
	"github.com/nao1215/rails/pkg/visitor"
)

// RailsAuthのエラーレスポンス。
const (
	errAdminCredentials  = "Incorrect admin credentials"
	errMissingToken      = "Missing token"
	errInvalidToken      = "Invalid token"
	errSessionStorage    = "Session storage failure"
	errClientUnavailable = "Rails client unavailable"
)

// コンテキストキー。
const (
	contextKeyRailsToken    = "rails_token"
	contextKeyRailsUserInfo = "rails_uinfo"
)

// defaultTokenParam はトークンを受け取るクエリパラメータ名のデフォルト。
const defaultTokenParam = "token"

// RailsAuthConfig はRailsAuthミドルウェアの設定。
type RailsAuthConfig struct {
	// NewClient はリクエストごとにRailsクライアントを生成する。
	NewClient func() (*railsclient.Client, error)
	// ServiceUsername はゲート自身がログインするサービスアカウントのユーザー名。
	ServiceUsername string
	// ServicePassword はサービスアカウントのパスワード。
	ServicePassword string
	// Sessions は訪問者セッションの保存先。
	Sessions visitor.Store
	// Cookie は訪問者セッションIDのクッキーを扱うコーデック。
	Cookie visitor.CookieCodec
	// TokenParam はトークンを受け取るクエリパラメータ名。空の場合は "token"。
	TokenParam string
}

// RailsAuth はRailsバックエンドでユーザートークンを検証するGinミドルウェアを返す。
//
// リクエストごとにサービスアカウントでログインし、クエリパラメータまたは
// 訪問者セッションにキャッシュされたトークンをユーザー情報に解決する。
// トークンがキャッシュと異なる場合のみ訪問者セッションを書き換える。
// 成功した場合、コンテキストに "rails_token" と "rails_uinfo" を設定する。
func RailsAuth(cfg RailsAuthConfig) gin.HandlerFunc {
	tokenParam := cfg.TokenParam
	if tokenParam == "" {
		tokenParam = defaultTokenParam
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sess, err := loadVisitorSession(c, cfg)
		if err != nil {
			log.Printf("[RailsAuth] 訪問者セッションの読み込みに失敗: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errSessionStorage})
			return
		}

		client, err := cfg.NewClient()
		if err != nil {
			log.Printf("[RailsAuth] Railsクライアントの生成に失敗: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errClientUnavailable})
			return
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Printf("[RailsAuth] Railsクライアントのクローズに失敗: %v", err)
			}
		}()

		auth := client.Authenticate(ctx, railsclient.AuthParams{
			Username: cfg.ServiceUsername,
			Password: cfg.ServicePassword,
		})
		if !auth.OK(railsclient.MessageAuthSuccess) {
			log.Printf("[RailsAuth] サービスアカウントの認証に失敗: message=%s errors=%v", auth.Message, auth.Errors)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errAdminCredentials})
			return
		}

		// クエリパラメータが存在すればキャッシュより優先する
		token, ok := c.GetQuery(tokenParam)
		if !ok {
			token = sess.Token
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errMissingToken})
			return
		}

		uinfo := client.GetUserInfo(ctx, token)
		if !uinfo.OK(railsclient.MessageUserInfoSuccess) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidToken})
			return
		}

		if sess.Token != token {
			now := time.Now().UTC()
			if sess.CreatedAt.IsZero() {
				sess.CreatedAt = now
			}
			sess.Token = token
			sess.UserInfo = uinfo.Data
			sess.UpdatedAt = now
			if err := cfg.Sessions.Save(ctx, sess); err != nil {
				log.Printf("[RailsAuth] 訪問者セッションの保存に失敗: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errSessionStorage})
				return
			}
		}

		c.Set(contextKeyRailsToken, sess.Token)
		c.Set(contextKeyRailsUserInfo, sess.UserInfo)
		c.Next()
	}
}

// loadVisitorSession はクッキーから訪問者セッションを読み込む。
// クッキーが無いか不正な場合は新しいセッションIDを発行してクッキーを設定する。
func loadVisitorSession(c *gin.Context, cfg RailsAuthConfig) (*visitor.Session, error) {
	if value, err := c.Cookie(cfg.Cookie.Name); err == nil {
		if id, err := cfg.Cookie.Decode(value); err == nil {
			sess, err := cfg.Sessions.Get(c.Request.Context(), id)
			switch {
			case err == nil:
				return sess, nil
			case errors.Is(err, visitor.ErrNotFound):
				return &visitor.Session{ID: id}, nil
			default:
				return nil, err
			}
		}
	}

	id := visitor.NewID()
	cookie, err := cfg.Cookie.Encode(id)
	if err != nil {
		return nil, err
	}
	http.SetCookie(c.Writer, cookie)
	return &visitor.Session{ID: id}, nil
}

// GetRailsToken はGinコンテキストから検証済みのトークンを取得する。
// RailsAuthミドルウェアが事前に適用されている必要がある。
func GetRailsToken(c *gin.Context) string {
	return c.GetString(contextKeyRailsToken)
}

// GetRailsUserInfo はGinコンテキストから訪問者セッションのユーザー情報を取得する。
func GetRailsUserInfo(c *gin.Context) json.RawMessage {
	v, _ := c.Get(contextKeyRailsUserInfo)
	if uinfo, ok := v.(json.RawMessage); ok {
		return uinfo
	}
	return nil
}
