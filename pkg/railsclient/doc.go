// Package railsclient はゲームマーケットプレイスAPI（Rails）のHTTPクライアントを提供する。
//
// 認証、ゲームの登録・一覧・検索、購入、請求書、支払い、ユーザー情報の取得など、
// バックエンドの各エンドポイントに対応するメソッドを持つ。
// すべての結果は共通のレスポンス形式（Response）に正規化されるため、
// 呼び出し側は message フィールドを確認するだけで成否を判定できる。
//
// セッションはクッキーで維持され、クッキーストアはClientインスタンスが排他的に所有する。
// Close() または Logout() でクッキーストアは必ず破棄される。
package railsclient
