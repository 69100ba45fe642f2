package visitor

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret はテスト用のクッキー署名秘密鍵。
const testSecret = "test-visitor-secret"

// TestCookieCodec はCookieCodecを検証する。
func TestCookieCodec(t *testing.T) {
	t.Parallel()

	codec := NewCookieCodec(testSecret, time.Hour, true)

	t.Run("エンコードしたセッションIDをデコードできること", func(t *testing.T) {
		t.Parallel()

		id := NewID()
		cookie, err := codec.Encode(id)
		if err != nil {
			t.Fatalf("Encode()でエラーが発生: %v", err)
		}
		if cookie.Name != DefaultCookieName {
			t.Errorf("Name = %q, want %q", cookie.Name, DefaultCookieName)
		}
		if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
			t.Errorf("クッキー属性が不正: %+v", cookie)
		}
		if cookie.MaxAge != 3600 {
			t.Errorf("MaxAge = %d, want 3600", cookie.MaxAge)
		}

		got, err := codec.Decode(cookie.Value)
		if err != nil {
			t.Fatalf("Decode()でエラーが発生: %v", err)
		}
		if got != id {
			t.Errorf("id = %q, want %q", got, id)
		}
	})

	t.Run("別の秘密鍵で署名されたクッキーを拒否すること", func(t *testing.T) {
		t.Parallel()

		other := NewCookieCodec("other-secret", time.Hour, false)
		cookie, err := other.Encode(NewID())
		if err != nil {
			t.Fatalf("Encode()でエラーが発生: %v", err)
		}
		if _, err := codec.Decode(cookie.Value); !errors.Is(err, ErrInvalidCookie) {
			t.Errorf("err = %v, want ErrInvalidCookie", err)
		}
	})

	t.Run("期限切れのクッキーを拒否すること", func(t *testing.T) {
		t.Parallel()

		expired := NewCookieCodec(testSecret, -time.Minute, false)
		cookie, err := expired.Encode(NewID())
		if err != nil {
			t.Fatalf("Encode()でエラーが発生: %v", err)
		}
		if _, err := codec.Decode(cookie.Value); !errors.Is(err, ErrInvalidCookie) {
			t.Errorf("err = %v, want ErrInvalidCookie", err)
		}
	})

	t.Run("UUIDでないセッションIDを拒否すること", func(t *testing.T) {
		t.Parallel()

		claims := jwt.RegisteredClaims{
			ID:        "../../etc/passwd",
			Issuer:    cookieIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}
		if _, err := codec.Decode(signed); !errors.Is(err, ErrInvalidCookie) {
			t.Errorf("err = %v, want ErrInvalidCookie", err)
		}
	})

	t.Run("署名アルゴリズムがnoneのトークンを拒否すること", func(t *testing.T) {
		t.Parallel()

		claims := jwt.RegisteredClaims{
			ID:        NewID(),
			Issuer:    cookieIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("トークンの生成に失敗: %v", err)
		}
		if _, err := codec.Decode(unsigned); !errors.Is(err, ErrInvalidCookie) {
			t.Errorf("err = %v, want ErrInvalidCookie", err)
		}
	})

	t.Run("JWTでない値を拒否すること", func(t *testing.T) {
		t.Parallel()

		if _, err := codec.Decode("garbage"); !errors.Is(err, ErrInvalidCookie) {
			t.Errorf("err = %v, want ErrInvalidCookie", err)
		}
	})
}
