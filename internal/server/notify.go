package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alone-wolf/rutify/pkg/event"
)

const (
	// defaultTitle はタイトル未指定時の既定値。
	defaultTitle = "default title"
	// defaultDevice はデバイス名未指定時の既定値。
	defaultDevice = "default device"
)

// notifyInput は通知受理リクエストの入力構造。
// POSTではJSONボディ、GETではクエリパラメータから束縛する。
type notifyInput struct {
	// Notify は通知の本文（必須）。
	Notify string `json:"notify" form:"notify"`
	// Title は通知のタイトル（省略可）。
	Title string `json:"title" form:"title"`
	// Device は通知の送信元デバイス名（省略可）。
	Device string `json:"device" form:"device"`
}

// handleReceiveNotifyPost はJSONボディによる通知受理ハンドラを返す。
func (s *Server) handleReceiveNotifyPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input notifyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}
		s.submitNotify(c, input)
	}
}

// handleReceiveNotifyGet はクエリパラメータによる通知受理ハンドラを返す。
func (s *Server) handleReceiveNotifyGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input notifyInput
		if err := c.ShouldBindQuery(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "クエリパラメータが不正です"})
			return
		}
		s.submitNotify(c, input)
	}
}

// submitNotify は通知の取り込みパイプライン本体。
// 検証 → 既定値の適用 → 耐久的な書き込み → ファンアウト、の順に処理し、
// 書き込みの完了が確認できるまでは配信を開始しない。
// 書き込みに失敗した場合は配信を行わず、処理全体を中断する。
func (s *Server) submitNotify(c *gin.Context, input notifyInput) {
	if input.Notify == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notifyは必須です"})
		return
	}

	if input.Title == "" {
		input.Title = defaultTitle
	}
	if input.Device == "" {
		input.Device = defaultDevice
	}

	record, err := s.store.Append(c.Request.Context(), input.Notify, input.Title, input.Device)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の保存に失敗しました"})
		log.Printf("通知保存エラー: %v", err)
		return
	}

	// 永続化が確定したレコードのみ配信する
	ev := event.NewNotifyEvent(event.NotificationData{
		Notify: record.Notify,
		Title:  record.Title,
		Device: record.Device,
	}, record.ReceivedAt)
	s.hub.Publish(ev)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
