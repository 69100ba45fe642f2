package visitor

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/rails/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore はSQLiteにセッションを保存するStore。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// ttl は最終更新からセッションが有効な期間。0以下なら無期限。
	ttl time.Duration
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite はpathのSQLiteデータベースを開き、マイグレーションを適用する。
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteは単一の書き込み接続で運用する
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(ctx, db, ttl)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore は既存の接続からSQLiteStoreを生成し、マイグレーションを適用する。
func NewSQLiteStore(ctx context.Context, db *sql.DB, ttl time.Duration) (*SQLiteStore, error) {
	if err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get はIDに対応するセッションを返す。期限切れのセッションは存在しないものとして扱う。
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sess      Session
		uinfo     string
		createdAt int64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, token, uinfo, created_at, updated_at FROM visitor_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Token, &uinfo, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗: %w", err)
	}

	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if s.expired(sess.UpdatedAt) {
		return nil, ErrNotFound
	}
	if uinfo != "" {
		sess.UserInfo = []byte(uinfo)
	}
	return &sess, nil
}

// Save はセッションを作成または上書きする。
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitor_sessions (id, token, uinfo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			uinfo = excluded.uinfo,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Token, string(sess.UserInfo), sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("セッションの保存に失敗: %w", err)
	}
	return nil
}

// Delete はセッションを削除する。
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM visitor_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除した件数を返す。
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.ttl).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitor_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) expired(updatedAt time.Time) bool {
	return s.ttl > 0 && time.Since(updatedAt) > s.ttl
}
