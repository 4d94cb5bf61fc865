package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventNameNotify は通知イベントのイベント名。
const EventNameNotify = "notify"

// NotificationData は通知の本体データ。
// 保存された通知レコードと購読クライアントへ配信されるイベントの両方で使用する。
type NotificationData struct {
	// Notify は通知の本文。
	Notify string `json:"notify"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Device は通知の送信元デバイス名。
	Device string `json:"device"`
}

// NotifyEvent は購読クライアントへ配信される通知イベントのワイヤ形式。
// 永続化が完了した通知レコードからのみ生成される。
type NotifyEvent struct {
	// Event はイベント名（常に "notify"）。
	Event string `json:"event"`
	// Data は通知の本体データ。
	Data NotificationData `json:"data"`
	// Timestamp はサーバーが通知を受理した日時。
	Timestamp time.Time `json:"timestamp"`
}

// NewNotifyEvent は通知データから配信用イベントを生成する。
func NewNotifyEvent(data NotificationData, receivedAt time.Time) NotifyEvent {
	return NotifyEvent{
		Event:     EventNameNotify,
		Data:      data,
		Timestamp: receivedAt,
	}
}

// MessageType はストリーム接続上を流れるメッセージの種類を表す。
// 種類は閉じた集合であり、動的なディスパッチは行わない。
type MessageType string

const (
	// MessageTypeEvent は通知イベントの配信を表す。
	MessageTypeEvent MessageType = "event"
	// MessageTypeText は任意のテキストメッセージを表す。
	MessageTypeText MessageType = "text"
	// MessageTypeClose は接続のクローズ指示を表す。
	MessageTypeClose MessageType = "close"
	// MessageTypeError はエラーメッセージを表す。
	MessageTypeError MessageType = "error"
	// MessageTypePing は心跳パケットを表す。
	MessageTypePing MessageType = "ping"
	// MessageTypePong は心跳応答を表す。
	MessageTypePong MessageType = "pong"
)

// Message はストリーム接続の送信キューに積まれる1件のメッセージ。
// Type に応じて使用するフィールドが決まる。
type Message struct {
	// Type はメッセージの種類。
	Type MessageType
	// Event は Type が MessageTypeEvent の場合の通知イベント。
	Event *NotifyEvent
	// Text は Type が MessageTypeText / MessageTypeError の場合の本文。
	Text string
}

// NewEventMessage は通知イベントの配信メッセージを生成する。
func NewEventMessage(ev NotifyEvent) Message {
	return Message{Type: MessageTypeEvent, Event: &ev}
}

// NewTextMessage はテキストメッセージを生成する。
func NewTextMessage(text string) Message {
	return Message{Type: MessageTypeText, Text: text}
}

// NewErrorMessage はエラーメッセージを生成する。
func NewErrorMessage(message string) Message {
	return Message{Type: MessageTypeError, Text: message}
}

// Payload はクライアントへ書き込むペイロードをシリアライズする。
// 通知イベントは NotifyEvent のJSON、テキストはそのまま、
// エラーは {"error": ...} のJSONになる。
func (m Message) Payload() ([]byte, error) {
	switch m.Type {
	case MessageTypeEvent:
		if m.Event == nil {
			return nil, fmt.Errorf("イベントメッセージにイベントが設定されていません")
		}
		payload, err := json.Marshal(m.Event)
		if err != nil {
			return nil, fmt.Errorf("通知イベントのシリアライズに失敗: %w", err)
		}
		return payload, nil
	case MessageTypeText:
		return []byte(m.Text), nil
	case MessageTypeError:
		payload, err := json.Marshal(map[string]string{"error": m.Text})
		if err != nil {
			return nil, fmt.Errorf("エラーメッセージのシリアライズに失敗: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("ペイロードを持たないメッセージ種別: %s", m.Type)
	}
}
