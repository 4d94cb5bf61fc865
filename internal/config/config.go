package config

import (
	"fmt"
	"os"
)

// EnvDevelopment は開発モードを表す環境名。
const EnvDevelopment = "development"

// devJWTSecret は開発モード専用のデフォルト署名シークレット。
// 本番モードではRUTIFY_JWT_SECRETの明示的な設定を必須とする。
const devJWTSecret = "rutify-development-only-signing-secret"

// minJWTSecretLength は署名シークレットの最小文字数。
const minJWTSecretLength = 32

// Config はサーバーの起動設定。環境変数から構築する。
type Config struct {
	// Addr はHTTPサーバーのリッスンアドレス。
	Addr string
	// DSN はSQLiteデータベースの接続文字列。
	DSN string
	// JWTSecret はセッショントークンの署名シークレット。
	JWTSecret string
	// Env は実行環境名（development / production）。
	Env string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
}

// Load は環境変数から設定を読み込む。
// 開発モード以外で署名シークレットが未設定または32文字未満の場合はエラーを返し、
// プロセスを起動させない。
func Load() (*Config, error) {
	cfg := &Config{
		Addr:        getEnvOr("RUTIFY_ADDR", "0.0.0.0:3000"),
		DSN:         getEnvOr("RUTIFY_DB", "rutify.db?_journal_mode=WAL&_busy_timeout=5000"),
		JWTSecret:   os.Getenv("RUTIFY_JWT_SECRET"),
		Env:         getEnvOr("RUTIFY_ENV", EnvDevelopment),
		FrontendURL: getEnvOr("RUTIFY_FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != EnvDevelopment {
			return nil, fmt.Errorf("RUTIFY_JWT_SECRETが設定されていません（%s環境では必須）", cfg.Env)
		}
		cfg.JWTSecret = devJWTSecret
	}

	// 開発モードでは短いシークレットを許容する
	if cfg.Env != EnvDevelopment && len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("署名シークレットが短すぎます（最低%d文字、現在%d文字）", minJWTSecretLength, len(cfg.JWTSecret))
	}

	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
