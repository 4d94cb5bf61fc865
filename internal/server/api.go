package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alone-wolf/rutify/internal/notify"
)

// notifyResponse は通知レコードのJSONレスポンス構造。
type notifyResponse struct {
	// ID は通知の一意識別子。
	ID int64 `json:"id"`
	// Notify は通知の本文。
	Notify string `json:"notify"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Device は通知の送信元デバイス名。
	Device string `json:"device"`
	// ReceivedAt は通知の受理日時（RFC3339形式）。
	ReceivedAt string `json:"received_at"`
}

// toNotifyResponses はストアのレコードをJSONレスポンスのスライスに変換する。
func toNotifyResponses(records []notify.Record) []notifyResponse {
	responses := make([]notifyResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, notifyResponse{
			ID:         r.ID,
			Notify:     r.Notify,
			Title:      r.Title,
			Device:     r.Device,
			ReceivedAt: r.ReceivedAt.Format(time.RFC3339),
		})
	}
	return responses
}

// handleListNotifies は通知一覧をid昇順で返すハンドラを返す。
// limit / offset クエリパラメータで単純なページングを行う。
func (s *Server) handleListNotifies() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)
		offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

		records, err := s.store.List(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		total, err := s.store.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知件数の取得に失敗しました"})
			log.Printf("通知件数取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data":   toNotifyResponses(records),
			"meta":   gin.H{"total": total},
		})
	}
}

// handleDeleteAllNotifies は全通知を削除するハンドラを返す。
// セッショントークンで保護される。
func (s *Server) handleDeleteAllNotifies() gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := s.store.DeleteAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の削除に失敗しました"})
			log.Printf("全通知削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data":   gin.H{"deleted_count": deleted},
		})
	}
}

// handleDeleteNotifyByID は指定IDの通知を削除するハンドラを返す。
// 該当行が存在しない場合もエラーとせず、削除済みフラグをfalseで返す。
func (s *Server) handleDeleteNotifyByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが不正です"})
			return
		}

		removed, err := s.store.DeleteByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の削除に失敗しました"})
			log.Printf("通知削除エラー: id=%d, %v", id, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data":   gin.H{"deleted": removed},
		})
	}
}

// handleStats は統計情報を返すハンドラを返す。
// 統計は1つのトランザクションによる一貫したスナップショットから計算する。
func (s *Server) handleStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.store.ComputeStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "統計情報の取得に失敗しました"})
			log.Printf("統計取得エラー: %v", err)
			return
		}
		stats.IsRunning = true

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data":   stats,
		})
	}
}
