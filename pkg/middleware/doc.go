// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// セッショントークンの生成・検証、パニックリカバリ、CORS設定を含む。
package middleware
