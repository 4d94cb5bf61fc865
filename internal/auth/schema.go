package auth

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。ユーザーと通知トークンを保持する。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- ユーザー名（重複不可）
    username TEXT NOT NULL UNIQUE,
    -- bcryptでハッシュ化したパスワード
    password_hash TEXT NOT NULL,
    -- ユーザーの作成日時
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
    -- トークンの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 所有ユーザーのID
    user_id TEXT NOT NULL,
    -- シークレットのSHA-256ハッシュ（平文は保存しない）
    secret_hash TEXT NOT NULL UNIQUE,
    -- トークンの用途ラベル
    usage TEXT NOT NULL DEFAULT '',
    -- 失効フラグ。一度立てたら恒久的に有効化しない
    revoked INTEGER NOT NULL DEFAULT 0,
    -- トークンの作成日時
    created_at DATETIME NOT NULL,
    -- 最終使用日時
    last_used_at DATETIME
);

-- 所有ユーザーでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_tokens_user_id
    ON tokens(user_id);

-- ストリーム認可時のハッシュ照合を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_tokens_secret_hash
    ON tokens(secret_hash) WHERE revoked = 0;
`

// InitSchema はSQLiteデータベースに認証関連のスキーマを適用する。
// 冪等であり、プロセス起動のたびに呼び出して安全。
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("認証スキーマの適用に失敗: %w", err)
	}
	return nil
}
