// Package config は環境変数ベースのサーバー起動設定を提供する。
//
// リッスンアドレス、データベース接続文字列、セッショントークンの
// 署名シークレットを管理する。署名シークレットは開発モード以外では
// 32文字以上の明示的な設定を必須とする。
package config
