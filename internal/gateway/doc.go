// Package gateway はRails認証ゲートで保護されたアプリケーションサーバーの内部実装を提供する。
//
// ゲーム一覧・検索・詳細はRailsバックエンドへの未認証の問い合わせとして公開し、
// /api/v1 配下はRailsAuthミドルウェアでユーザートークンを検証してから処理する。
// 設定はすべて環境変数から読み込み、認証情報をコードに埋め込まない。
package gateway
