package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record は永続化された通知レコード。
// 作成後は削除を除いて不変。
type Record struct {
	// ID はストアが採番する一意識別子。厳密に単調増加する。
	ID int64 `json:"id"`
	// Notify は通知の本文。
	Notify string `json:"notify"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Device は通知の送信元デバイス名。
	Device string `json:"device"`
	// ReceivedAt はサーバーが通知を受理した日時。
	ReceivedAt time.Time `json:"received_at"`
}

// Stats は通知ストアの統計情報。
// 1つのトランザクション内で取得した一貫したスナップショットから計算する。
type Stats struct {
	// TodayCount は当日（UTC）に受理した通知の件数。
	TodayCount int64 `json:"today_count"`
	// TotalCount は全通知の件数。
	TotalCount int64 `json:"total_count"`
	// DeviceCount は通知を送信したデバイスの種類数。
	DeviceCount int64 `json:"device_count"`
	// IsRunning はサーバーの稼働状態。
	IsRunning bool `json:"is_running"`
}

// Store は通知レコードの永続化ストア。
// 通知行を直接更新するのはこのストアのみで、同時追記の直列化は
// SQLiteのトランザクションに委ねる。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しい通知ストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append は通知を永続化し、採番済みのレコードを返す。
// INSERTのコミットが完了するまで戻らないため、戻り値を受け取った時点で
// レコードは耐久的に書き込まれている。
func (s *Store) Append(ctx context.Context, notify, title, device string) (*Record, error) {
	receivedAt := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notifies (notify, title, device, received_at) VALUES (?, ?, ?, ?)`,
		notify, title, device, receivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("通知の保存に失敗: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("通知IDの取得に失敗: %w", err)
	}

	return &Record{
		ID:         id,
		Notify:     notify,
		Title:      title,
		Device:     device,
		ReceivedAt: receivedAt,
	}, nil
}

// List は通知レコードをid昇順で返す。
// limitが0以下の場合は全件、offsetで先頭からの読み飛ばしを指定する。
func (s *Store) List(ctx context.Context, limit, offset int64) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // SQLiteではLIMIT -1が無制限を表す
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, notify, title, device, received_at FROM notifies ORDER BY id ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Notify, &r.Title, &r.Device, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗: %w", err)
	}
	return records, nil
}

// Count は全通知の件数を返す。
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("通知件数の取得に失敗: %w", err)
	}
	return count, nil
}

// DeleteByID は指定IDの通知を削除し、削除が発生したかを返す。
// 該当行が存在しない場合はエラーではなく (false, nil) を返す。
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifies WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("通知の削除に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll は全通知を削除し、削除件数を返す。
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifies`)
	if err != nil {
		return 0, fmt.Errorf("全通知の削除に失敗: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return affected, nil
}

// ComputeStats は統計情報を計算する。
// 3つの集計を1つのトランザクション内で実行し、別々のタイミングの
// クエリ結果を合成しないことを保証する。
func (s *Store) ComputeStats(ctx context.Context) (*Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("統計トランザクションの開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stats Stats
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifies`).Scan(&stats.TotalCount); err != nil {
		return nil, fmt.Errorf("総件数の集計に失敗: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifies WHERE date(received_at) = date('now')`,
	).Scan(&stats.TodayCount); err != nil {
		return nil, fmt.Errorf("当日件数の集計に失敗: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT device) FROM notifies`,
	).Scan(&stats.DeviceCount); err != nil {
		return nil, fmt.Errorf("デバイス数の集計に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("統計トランザクションのコミットに失敗: %w", err)
	}
	return &stats, nil
}
