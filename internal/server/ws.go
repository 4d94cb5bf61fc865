package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/alone-wolf/rutify/internal/auth"
	"github.com/alone-wolf/rutify/internal/stream"
)

const (
	// writeWait は1回の書き込みに許容する最大時間。
	writeWait = 10 * time.Second
	// pongWait はpong応答を待つ最大時間。超過した接続は切断する。
	pongWait = 60 * time.Second
	// pingPeriod はpingの送信間隔。pongWaitより短くなければならない。
	pingPeriod = (pongWait * 9) / 10
)

// handleLegacyStream は無認可のレガシーストリーム購読ハンドラを返す。
func (s *Server) handleLegacyStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.serveStream(c, stream.Unscoped())
	}
}

// handleTokenStream は通知トークンで認可するストリーム購読ハンドラを返す。
// トークンの検証はプロトコルアップグレードの前に行い、
// 失効済み・未知のトークンでは接続を一切確立しない。
func (s *Server) handleTokenStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.Query("token")
		if secret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "通知トークンが必要です"})
			return
		}

		_, token, err := s.auth.VerifyTokenForStream(c.Request.Context(), secret)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "通知トークンが無効です"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの検証に失敗しました"})
			log.Printf("ストリーム認可エラー: %v", err)
			return
		}

		s.serveStream(c, stream.TokenScoped(token.ID))
	}
}

// serveStream はWebSocketへアップグレードし、接続をハブに登録して
// 読み書きのゴルーチンを起動する。登録以降の全ての離脱経路は
// Unregisterに合流し、接続は一度だけレジストリから除去される。
func (s *Server) serveStream(c *gin.Context, scope stream.Scope) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocketアップグレードエラー: %v", err)
		return
	}

	conn := stream.NewConn(scope)
	if err := s.hub.Register(conn); err != nil {
		log.Printf("ストリーム登録エラー: %v", err)
		_ = ws.Close()
		return
	}
	log.Printf("ストリーム接続を登録しました: conn=%s, token_scoped=%t", conn.ID(), scope.IsTokenScoped())

	go s.writeLoop(ws, conn)
	s.readLoop(ws, conn)
}

// readLoop はクライアントからの受信を監視する。
// 購読者からの入力は処理せず、切断とプロトコル違反の検出にのみ使う。
func (s *Server) readLoop(ws *websocket.Conn, conn *stream.Conn) {
	defer func() {
		s.hub.Unregister(conn)
		_ = ws.Close()
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ストリーム接続が異常終了しました: conn=%s, %v", conn.ID(), err)
			}
			return
		}
	}
}

// writeLoop は送信キューのイベントをネットワークへ書き出す。
// 書き込みに失敗したイベントの再送は行わず、接続を破棄する。
func (s *Server) writeLoop(ws *websocket.Conn, conn *stream.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.Unregister(conn)
		_ = ws.Close()
	}()

	for {
		select {
		case msg := <-conn.Send():
			payload, err := msg.Payload()
			if err != nil {
				log.Printf("イベントのシリアライズに失敗: conn=%s, %v", conn.ID(), err)
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
