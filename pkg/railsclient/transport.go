package railsclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL はバックエンドのデフォルトのベースURL。
	DefaultBaseURL = "https://dw.y-chain.net/rails"
	// DefaultTimeout はリクエストごとのデフォルトのタイムアウト。
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent はリクエストに付与するUser-Agent。
	DefaultUserAgent = "GameApiClient/1.0"
)

// ErrInsecureWithHTTPClient はWithHTTPClientとWithInsecureSkipVerifyが同時に指定されたことを表す。
// 差し替えたhttp.ClientのTLS設定は呼び出し側で行うこと。
var ErrInsecureWithHTTPClient = errors.New("WithInsecureSkipVerify cannot be combined with WithHTTPClient")

// Option はClientの設定を変更する関数。
type Option func(*options)

type options struct {
	httpClient         *http.Client
	cookieStore        CookieStore
	timeout            time.Duration
	userAgent          string
	insecureSkipVerify bool
}

// WithHTTPClient は内部で使用するhttp.Clientを差し替える。
// 複数のClientで同じhttp.Clientを渡すとTransportのコネクションプールを共有できる。
// 渡したhttp.Clientは変更されず、TimeoutとJarはClientごとのコピーに設定される。
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithCookieStore はクッキーストアを指定する。所有権はClientに移る。
func WithCookieStore(store CookieStore) Option {
	return func(o *options) { o.cookieStore = store }
}

// WithTimeout はリクエストごとのタイムアウトを指定する。
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent はUser-Agentヘッダーの値を指定する。空の場合はDefaultUserAgentのまま。
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithInsecureSkipVerify はTLS証明書の検証を無効にする。
// 検証済みの証明書を用意できない開発環境でのみ使用すること。
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *options) { o.insecureSkipVerify = skip }
}

// NewTransport はhttp.DefaultTransportを複製したTransportを返す。
// insecureSkipVerifyがtrueの場合はTLS証明書の検証を無効にし、警告をログに出力する。
func NewTransport(insecureSkipVerify bool) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		log.Printf("[Rails] 警告: TLS証明書の検証が無効化されています")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return transport
}

// newHTTPClient はオプションからhttp.Clientを組み立てる。
func newHTTPClient(o *options) *http.Client {
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{}
		if o.insecureSkipVerify {
			hc.Transport = NewTransport(true)
		}
	} else {
		copied := *hc
		hc = &copied
	}
	hc.Timeout = o.timeout
	hc.Jar = o.cookieStore
	return hc
}

// postForm は指定エンドポイントにフォーム形式でPOSTリクエストを送信する。
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) *Response {
	return c.do(ctx, http.MethodPost, endpoint, params)
}

// get は指定エンドポイントにクエリ文字列付きでGETリクエストを送信する。
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) *Response {
	return c.do(ctx, http.MethodGet, endpoint, params)
}

// do はすべてのリクエストに共通する送信処理。
// 通信エラーとJSONのデコード失敗もResponseとして返す。
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values) *Response {
	target := c.baseURL + endpoint

	var body io.Reader
	switch method {
	case http.MethodGet:
		target += "?" + params.Encode()
	default:
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return transportError(fmt.Errorf("HTTPリクエストの作成に失敗: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err))
	}

	return decodeResponse(respBody, resp.StatusCode)
}
