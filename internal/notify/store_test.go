package notify

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestStore はテスト用の通知ストアをインメモリSQLiteで構築する。
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := InitSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	return NewStore(sqlDB)
}

// TestAppend は通知の追記と採番を検証する。
func TestAppend(t *testing.T) {
	t.Parallel()

	t.Run("追記した通知がそのまま読み出せること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		record, err := store.Append(t.Context(), "ビルド完了", "CI", "build-server")
		if err != nil {
			t.Fatalf("通知の追記に失敗: %v", err)
		}
		if record.ID <= 0 {
			t.Errorf("ID: got %d, want 正の値", record.ID)
		}

		records, err := store.List(t.Context(), 0, 0)
		if err != nil {
			t.Fatalf("通知一覧の取得に失敗: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("件数: got %d, want 1", len(records))
		}
		if records[0].Notify != "ビルド完了" || records[0].Title != "CI" || records[0].Device != "build-server" {
			t.Errorf("レコードの内容が一致しません: %+v", records[0])
		}
	})

	t.Run("IDが厳密に単調増加すること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		var prev int64
		for i := 0; i < 5; i++ {
			record, err := store.Append(t.Context(), "通知", "タイトル", "デバイス")
			if err != nil {
				t.Fatalf("通知の追記に失敗: %v", err)
			}
			if record.ID <= prev {
				t.Errorf("IDが単調増加していません: prev=%d, got=%d", prev, record.ID)
			}
			prev = record.ID
		}
	})

	t.Run("削除されたIDが再利用されないこと", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		first, err := store.Append(t.Context(), "最初の通知", "t", "d")
		if err != nil {
			t.Fatalf("通知の追記に失敗: %v", err)
		}
		if _, err := store.DeleteByID(t.Context(), first.ID); err != nil {
			t.Fatalf("通知の削除に失敗: %v", err)
		}

		second, err := store.Append(t.Context(), "次の通知", "t", "d")
		if err != nil {
			t.Fatalf("通知の追記に失敗: %v", err)
		}
		if second.ID <= first.ID {
			t.Errorf("削除後もIDは増加し続けるべきです: first=%d, second=%d", first.ID, second.ID)
		}
	})
}

// TestList は一覧取得のページングと順序を検証する。
func TestList(t *testing.T) {
	t.Parallel()

	t.Run("id昇順で返ること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		for i := 0; i < 3; i++ {
			if _, err := store.Append(t.Context(), "通知", "t", "d"); err != nil {
				t.Fatalf("通知の追記に失敗: %v", err)
			}
		}

		records, err := store.List(t.Context(), 0, 0)
		if err != nil {
			t.Fatalf("通知一覧の取得に失敗: %v", err)
		}
		for i := 1; i < len(records); i++ {
			if records[i].ID <= records[i-1].ID {
				t.Errorf("一覧がid昇順ではありません: %d の後に %d", records[i-1].ID, records[i].ID)
			}
		}
	})

	t.Run("limitとoffsetでページングできること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		ids := make([]int64, 0, 5)
		for i := 0; i < 5; i++ {
			record, err := store.Append(t.Context(), "通知", "t", "d")
			if err != nil {
				t.Fatalf("通知の追記に失敗: %v", err)
			}
			ids = append(ids, record.ID)
		}

		records, err := store.List(t.Context(), 2, 1)
		if err != nil {
			t.Fatalf("通知一覧の取得に失敗: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("件数: got %d, want 2", len(records))
		}
		if records[0].ID != ids[1] || records[1].ID != ids[2] {
			t.Errorf("ページング結果が不正: got [%d, %d], want [%d, %d]",
				records[0].ID, records[1].ID, ids[1], ids[2])
		}
	})

	t.Run("空のストアでは空スライスが返ること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		records, err := store.List(t.Context(), 0, 0)
		if err != nil {
			t.Fatalf("通知一覧の取得に失敗: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("件数: got %d, want 0", len(records))
		}
	})
}

// TestDeleteByID は単体削除の動作を検証する。
func TestDeleteByID(t *testing.T) {
	t.Parallel()

	t.Run("存在する通知を削除できること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		record, err := store.Append(t.Context(), "削除対象", "t", "d")
		if err != nil {
			t.Fatalf("通知の追記に失敗: %v", err)
		}

		removed, err := store.DeleteByID(t.Context(), record.ID)
		if err != nil {
			t.Fatalf("通知の削除に失敗: %v", err)
		}
		if !removed {
			t.Error("削除フラグ: got false, want true")
		}

		count, err := store.Count(t.Context())
		if err != nil {
			t.Fatalf("件数の取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("件数: got %d, want 0", count)
		}
	})

	t.Run("存在しないIDの削除はエラーにならないこと", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		removed, err := store.DeleteByID(t.Context(), 9999)
		if err != nil {
			t.Fatalf("存在しないIDの削除でエラー: %v", err)
		}
		if removed {
			t.Error("削除フラグ: got true, want false")
		}
	})

	t.Run("同じIDを2回削除しても2回目は何も起きないこと", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		record, err := store.Append(t.Context(), "削除対象", "t", "d")
		if err != nil {
			t.Fatalf("通知の追記に失敗: %v", err)
		}

		if _, err := store.DeleteByID(t.Context(), record.ID); err != nil {
			t.Fatalf("1回目の削除に失敗: %v", err)
		}
		removed, err := store.DeleteByID(t.Context(), record.ID)
		if err != nil {
			t.Fatalf("2回目の削除でエラー: %v", err)
		}
		if removed {
			t.Error("2回目の削除フラグ: got true, want false")
		}
	})
}

// TestDeleteAll は全件削除の動作を検証する。
func TestDeleteAll(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)

	for i := 0; i < 4; i++ {
		if _, err := store.Append(t.Context(), "通知", "t", "d"); err != nil {
			t.Fatalf("通知の追記に失敗: %v", err)
		}
	}

	deleted, err := store.DeleteAll(t.Context())
	if err != nil {
		t.Fatalf("全件削除に失敗: %v", err)
	}
	if deleted != 4 {
		t.Errorf("削除件数: got %d, want 4", deleted)
	}

	count, err := store.Count(t.Context())
	if err != nil {
		t.Fatalf("件数の取得に失敗: %v", err)
	}
	if count != 0 {
		t.Errorf("件数: got %d, want 0", count)
	}
}

// TestComputeStats は統計情報の計算を検証する。
func TestComputeStats(t *testing.T) {
	t.Parallel()

	t.Run("件数とデバイス数が一覧と一致すること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		devices := []string{"phone", "phone", "laptop"}
		for _, device := range devices {
			if _, err := store.Append(t.Context(), "通知", "t", device); err != nil {
				t.Fatalf("通知の追記に失敗: %v", err)
			}
		}

		stats, err := store.ComputeStats(t.Context())
		if err != nil {
			t.Fatalf("統計の計算に失敗: %v", err)
		}

		records, err := store.List(t.Context(), 0, 0)
		if err != nil {
			t.Fatalf("通知一覧の取得に失敗: %v", err)
		}

		if stats.TotalCount != int64(len(records)) {
			t.Errorf("TotalCount: got %d, want %d", stats.TotalCount, len(records))
		}
		if stats.DeviceCount != 2 {
			t.Errorf("DeviceCount: got %d, want 2", stats.DeviceCount)
		}
		// 直前に追記した通知は全て当日分
		if stats.TodayCount != int64(len(records)) {
			t.Errorf("TodayCount: got %d, want %d", stats.TodayCount, len(records))
		}
	})

	t.Run("空のストアでは全てゼロになること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)

		stats, err := store.ComputeStats(t.Context())
		if err != nil {
			t.Fatalf("統計の計算に失敗: %v", err)
		}
		if stats.TotalCount != 0 || stats.TodayCount != 0 || stats.DeviceCount != 0 {
			t.Errorf("空のストアの統計が不正: %+v", stats)
		}
	})
}
