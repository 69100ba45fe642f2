package railsclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// CookieStore はClientのセッションクッキーを保持するストア。
// 1つのClientが排他的に所有し、他のClientと共有してはならない。
type CookieStore interface {
	http.CookieJar
	// Clear は保存済みのクッキーをすべて破棄する。ストアは引き続き使用できる。
	Clear() error
	// Close はストアを破棄する。永続化先がある場合は削除する。
	Close() error
}

// MemoryCookieStore はメモリ上にクッキーを保持するストア。
type MemoryCookieStore struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

var _ CookieStore = (*MemoryCookieStore)(nil)

// NewMemoryCookieStore は空のMemoryCookieStoreを生成する。
func NewMemoryCookieStore() (*MemoryCookieStore, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	return &MemoryCookieStore{jar: jar}, nil
}

// SetCookies はhttp.CookieJarの実装。
func (s *MemoryCookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, cookies)
}

// Cookies はhttp.CookieJarの実装。
func (s *MemoryCookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

// Clear は保持しているクッキーをすべて破棄する。
func (s *MemoryCookieStore) Clear() error {
	jar, err := newJar()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jar = jar
	s.mu.Unlock()
	return nil
}

// Close はクッキーを破棄する。
func (s *MemoryCookieStore) Close() error {
	return s.Clear()
}

// FileCookieStore はメモリ上のjarを正とし、受け取ったクッキーをファイルにも書き出すストア。
// ファイルはSetCookiesの記録を追記していく書き出し専用のミラーで、読み戻しはしない。
// ファイル名にはインスタンスごとにUUIDを含め、Clear/Closeで削除する。
type FileCookieStore struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	path    string
	entries []cookieEntry
}

var _ CookieStore = (*FileCookieStore)(nil)

// cookieEntry はファイルに記録するSetCookies呼び出し1回分。
type cookieEntry struct {
	// URL はクッキーを受け取ったリクエストのURL。
	URL string `json:"url"`
	// Cookies は受け取ったクッキー。
	Cookies []*http.Cookie `json:"cookies"`
}

// OpenFileCookieStore はdir配下に新しいクッキーファイルを作成してストアを開く。
// dirが空の場合はOSの一時ディレクトリを使用する。
func OpenFileCookieStore(dir string) (*FileCookieStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "rails_cookie_"+uuid.New().String()+".json")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("クッキーファイルの作成に失敗: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("クッキーファイルのクローズに失敗: %w", err)
	}

	return &FileCookieStore{jar: jar, path: path}, nil
}

// Path はクッキーファイルのパスを返す。
func (s *FileCookieStore) Path() string {
	return s.path
}

// SetCookies はhttp.CookieJarの実装。受け取ったクッキーをjarに設定し、これまでの記録とともにファイルへ書き出す。
func (s *FileCookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(u, cookies)
	s.entries = append(s.entries, cookieEntry{URL: u.String(), Cookies: cookies})
	if err := s.flush(); err != nil {
		// CookieJarはエラーを返せないため、メモリ上のクッキーで継続する
		log.Printf("[Rails] クッキーファイルの書き込みに失敗: %v", err)
	}
}

// Cookies はhttp.CookieJarの実装。
func (s *FileCookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

// Clear はクッキーを破棄し、クッキーファイルを削除する。
func (s *FileCookieStore) Clear() error {
	jar, err := newJar()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.entries = nil
	return s.remove()
}

// Close はクッキーファイルを削除する。
func (s *FileCookieStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.remove()
}

// flush は記録済みのクッキーをファイルに書き出す。呼び出し側でロックを保持すること。
func (s *FileCookieStore) flush() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("クッキーのシリアライズに失敗: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// remove はクッキーファイルを削除する。存在しない場合は何もしない。
func (s *FileCookieStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("クッキーファイルの削除に失敗: %w", err)
	}
	return nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("クッキージャーの生成に失敗: %w", err)
	}
	return jar, nil
}
