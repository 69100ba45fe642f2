package railsclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
)

var (
	// ErrInvalidSearchBy は検索条件がtitle/author以外であることを表す。
	ErrInvalidSearchBy = errors.New("invalid search criteria. Must be one of: title, author")
	// ErrInvalidGameID はゲームIDが数値でないことを表す。
	ErrInvalidGameID = errors.New("game ID must be a numeric value")
)

// SearchBy はゲーム検索の対象フィールド。
type SearchBy string

const (
	// SearchByTitle はタイトルで検索する。
	SearchByTitle SearchBy = "title"
	// SearchByAuthor は作者で検索する。
	SearchByAuthor SearchBy = "author"
)

// PayoutType は支払い先の種類。
type PayoutType string

// PayoutTypeUser はユーザーへの支払いを表す。デフォルト値。
const PayoutTypeUser PayoutType = "user"

// Client はRailsバックエンドのAPIクライアント。
// 認証状態とクッキーストアを保持する。
type Client struct {
	// httpClient はクッキーストアをJarに持つHTTPクライアント。
	httpClient *http.Client
	// baseURL は末尾のスラッシュを除いたバックエンドのベースURL。
	baseURL string
	// userAgent はリクエストに付与するUser-Agent。
	userAgent string
	// cookies はセッションを維持するクッキーストア。
	cookies CookieStore
	// authenticated はAuthenticateが成功したかどうか。
	authenticated atomic.Bool
}

// New は新しいClientを生成する。baseURLが空の場合はDefaultBaseURLを使用する。
// クッキーストアが指定されない場合はインスタンス専用のMemoryCookieStoreを生成する。
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("ベースURLが不正: %w", err)
	}

	o := &options{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient != nil && o.insecureSkipVerify {
		return nil, ErrInsecureWithHTTPClient
	}
	if o.cookieStore == nil {
		store, err := NewMemoryCookieStore()
		if err != nil {
			return nil, err
		}
		o.cookieStore = store
	}

	return &Client{
		httpClient: newHTTPClient(o),
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  o.userAgent,
		cookies:    o.cookieStore,
	}, nil
}

// Close はクッキーストアを破棄する。
func (c *Client) Close() error {
	return c.cookies.Close()
}

// IsAuthenticated はAuthenticateが成功済みかを返す。
func (c *Client) IsAuthenticated() bool {
	return c.authenticated.Load()
}

// AuthParams はAuthenticateのパラメータ。
type AuthParams struct {
	Username string
	Password string
	// Confirm は確認コード。空の場合は送信しない。
	Confirm string
}

// Authenticate はユーザー名とパスワードでログインする。
// バックエンドがauth_successを返した場合に認証済みとなる。
func (c *Client) Authenticate(ctx context.Context, p AuthParams) *Response {
	params := url.Values{}
	params.Set("username", p.Username)
	params.Set("password", p.Password)
	if p.Confirm != "" {
		params.Set("confirm", p.Confirm)
	}

	resp := c.postForm(ctx, "/auth.php", params)
	if resp.OK(MessageAuthSuccess) {
		c.authenticated.Store(true)
	}
	return resp
}

// RegisterGameParams はRegisterGameのパラメータ。
type RegisterGameParams struct {
	Title       string
	PicURL      string
	AuthURL     string
	Description string
	// Price はゲームの価格。nilの場合は送信しない。
	Price *float64
}

// RegisterGame はゲームを新規登録する。
func (c *Client) RegisterGame(ctx context.Context, p RegisterGameParams) *Response {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to register a game")
	}

	params := url.Values{}
	params.Set("title", p.Title)
	params.Set("pic_url", p.PicURL)
	params.Set("auth_url", p.AuthURL)
	params.Set("description", p.Description)
	if p.Price != nil {
		params.Set("price", formatAmount(*p.Price))
	}
	return c.postForm(ctx, "/new_game.php", params)
}

// CreateInvoice は請求書を作成する。payloadが空の場合は送信しない。
func (c *Client) CreateInvoice(ctx context.Context, amount float64, payload string) *Response {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to create an invoice")
	}

	params := url.Values{}
	params.Set("amount", formatAmount(amount))
	if payload != "" {
		params.Set("payload", payload)
	}
	return c.postForm(ctx, "/invoice.php", params)
}

// PayoutParams はMakePayoutのパラメータ。
type PayoutParams struct {
	Username  string
	Password  string
	Amount    float64
	Recipient string
	// Type は支払い先の種類。空の場合はPayoutTypeUser。
	Type PayoutType
}

// MakePayout は支払いを実行する。
func (c *Client) MakePayout(ctx context.Context, p PayoutParams) *Response {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to make a payout")
	}

	payoutType := p.Type
	if payoutType == "" {
		payoutType = PayoutTypeUser
	}

	params := url.Values{}
	params.Set("username", p.Username)
	params.Set("password", p.Password)
	params.Set("amount", formatAmount(p.Amount))
	params.Set("recipient", p.Recipient)
	params.Set("type", string(payoutType))
	return c.postForm(ctx, "/payout.php", params)
}

// GetUserInfo はユーザー情報を取得する。
// tokenを指定した場合はそのトークンの持ち主の情報を返す。
func (c *Client) GetUserInfo(ctx context.Context, token string) *Response {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to view user information")
	}

	params := url.Values{}
	if token != "" {
		params.Set("token", token)
	}
	return c.get(ctx, "/uinfo.php", params)
}

// InternalPayment は請求書を内部残高で支払う。
// 事前の認証を必要とせず、常にリクエストを送信する。
func (c *Client) InternalPayment(ctx context.Context, username, password, invoiceID string) *Response {
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)
	params.Set("invoice_id", invoiceID)
	return c.postForm(ctx, "/internal_payment.php", params)
}

// GetInvoice は請求書を取得する。
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) *Response {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to view invoices")
	}

	params := url.Values{}
	params.Set("invoice_id", invoiceID)
	return c.get(ctx, "/receipt.php", params)
}

// ListOptions はゲーム一覧のページングとフィルタ。
// ゼロ値のPage/Limitはそれぞれ1/50として扱う。
type ListOptions struct {
	Page     int
	Limit    int
	OnlyFree bool
}

func (o ListOptions) values() url.Values {
	page, limit := o.Page, o.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("only_free", strconv.FormatBool(o.OnlyFree))
	return params
}

// ListGames はゲーム一覧を取得する。
func (c *Client) ListGames(ctx context.Context, opts ListOptions) *Response {
	return c.get(ctx, "/games.php", opts.values())
}

// SearchGames はタイトルまたは作者でゲームを検索する。
// searchByが不正な場合はリクエストを送信せずErrInvalidSearchByを返す。
func (c *Client) SearchGames(ctx context.Context, searchBy SearchBy, query string, opts ListOptions) (*Response, error) {
	if searchBy != SearchByTitle && searchBy != SearchByAuthor {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSearchBy, searchBy)
	}

	params := opts.values()
	params.Set("search_by", string(searchBy))
	params.Set("request", query)
	return c.get(ctx, "/games.php", params), nil
}

// OpenGame はIDを指定してゲームの詳細を取得する。
func (c *Client) OpenGame(ctx context.Context, gameID string) (*Response, error) {
	if !IsNumeric(gameID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	params := url.Values{}
	params.Set("search_by", "id")
	params.Set("request", gameID)
	return c.get(ctx, "/games.php", params), nil
}

// PurchaseGame はゲームを購入する。
// 未認証の場合はゲームIDの検証より先にnot_authenticatedを返す。
func (c *Client) PurchaseGame(ctx context.Context, gameID string) (*Response, error) {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to purchase a game"), nil
	}
	if !IsNumeric(gameID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	params := url.Values{}
	params.Set("game_id", gameID)
	return c.postForm(ctx, "/get_game.php", params), nil
}

// GetToken は購入済みゲームのアクセストークンを発行する。
func (c *Client) GetToken(ctx context.Context, gameID string) (*Response, error) {
	if !c.IsAuthenticated() {
		return notAuthenticated("You must be logged in to get a game token"), nil
	}
	if !IsNumeric(gameID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	params := url.Values{}
	params.Set("game_id", gameID)
	return c.postForm(ctx, "/get_token.php", params), nil
}

// Logout は認証状態とクッキーを破棄してからログアウトを要求する。
// バックエンドの応答に関わらず、ローカルの認証状態は常に解除される。
func (c *Client) Logout(ctx context.Context) *Response {
	c.authenticated.Store(false)
	if err := c.cookies.Clear(); err != nil {
		log.Printf("[Rails] クッキーストアの破棄に失敗: %v", err)
	}
	return c.postForm(ctx, "/unauth.php", url.Values{})
}

// IsNumeric はsが10進数の数値表記（整数、小数、指数表記）かを返す。
// 前後の空白は許容する。float64の範囲を超える指数表記（"1e999"）も数値とみなす。
func IsNumeric(s string) bool {
	s = strings.Trim(s, " \t\n\r\v\f")
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return false
		}
	}
	_, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) {
		return true
	}
	return err == nil
}

// formatAmount は金額を余分な0を含まない10進表記に変換する。
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
