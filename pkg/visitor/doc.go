// Package visitor は認証ゲートが訪問者ごとに保持するセッションを提供する。
//
// セッションIDは署名付きのクッキー（JWT）でブラウザに渡し、
// 解決済みのトークンとユーザー情報はStoreに保存する。
// Storeにはメモリ、SQLite、Redisの実装がある。
package visitor
