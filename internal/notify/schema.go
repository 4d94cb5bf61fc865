package notify

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。通知レコードを保持する。
// idはAUTOINCREMENTでストアの生存期間を通じて厳密に単調増加し、
// 削除後も再利用されない。
const schema = `
CREATE TABLE IF NOT EXISTS notifies (
    -- 通知の一意識別子。単調増加で再利用しない
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- 通知の本文
    notify TEXT NOT NULL,
    -- 通知のタイトル
    title TEXT NOT NULL,
    -- 通知の送信元デバイス名
    device TEXT NOT NULL,
    -- サーバーが通知を受理した日時
    received_at DATETIME NOT NULL
);

-- 当日件数の集計を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_notifies_received_at
    ON notifies(received_at);
`

// InitSchema はSQLiteデータベースに通知スキーマを適用する。
// 冪等であり、プロセス起動のたびに呼び出して安全。
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("通知スキーマの適用に失敗: %w", err)
	}
	return nil
}
