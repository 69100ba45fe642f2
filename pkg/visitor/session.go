package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound はセッションが存在しないことを表す。
var ErrNotFound = errors.New("visitor session not found")

// Session は訪問者1人分のキャッシュ。
type Session struct {
	// ID はセッションの一意識別子（UUID）。
	ID string `json:"id"`
	// Token は最後に解決したユーザートークン。
	Token string `json:"token"`
	// UserInfo はトークンから解決したユーザー情報（バックエンドのdataそのまま）。
	UserInfo json.RawMessage `json:"uinfo,omitempty"`
	// CreatedAt はセッションが作成された日時。
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt はトークンとユーザー情報が最後に書き換えられた日時。
	UpdatedAt time.Time `json:"updated_at"`
}

// Store は訪問者セッションの永続化先。
// 実装は並行アクセスに対して安全でなければならない。
type Store interface {
	// Get はIDに対応するセッションを返す。存在しない場合はErrNotFound。
	Get(ctx context.Context, id string) (*Session, error)
	// Save はセッションを作成または上書きする。
	Save(ctx context.Context, s *Session) error
	// Delete はセッションを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, id string) error
}
