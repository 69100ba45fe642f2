// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Railsバックエンドによる認証ゲート（RailsAuth）、パニックリカバリ、
// CORS設定など、保護対象のアプリケーションで共通して使用するミドルウェアを含む。
package middleware
