package stream

import (
	"errors"
	"log"
	"sync"

	"github.com/alone-wolf/rutify/pkg/event"
)

// ErrUnauthenticated は認可を経ていない接続の登録要求を表す。
var ErrUnauthenticated = errors.New("認可されていないストリーム接続です")

// Hub はストリーム接続のレジストリと配信のファンアウトを担う。
// 接続集合はミューテックスで保護され、Register / Unregister / Publish は
// 互いに原子的に実行される。プロセス全体の暗黙的なグローバル集合は持たず、
// サーバーが生成した1つのHubを共有する。
type Hub struct {
	// mu はレジストリ全体を保護するロック。
	mu sync.Mutex
	// conns は登録中の接続。接続IDをキーとする。
	conns map[string]*Conn
	// published は発行されたイベントの累計数。
	published int64
}

// NewHub は新しいハブを生成する。
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Register は接続をレジストリに登録し、状態をOpenにする。
// トークンスコープの接続は検証済みトークンIDを持たなければならず、
// 持たない場合は ErrUnauthenticated で拒否する。
// 登録は進行中のPublishと原子的であり、登録完了前に開始したPublishに
// 取りこぼされ、かつ完了後のPublishに二重計上されることはない。
func (h *Hub) Register(c *Conn) error {
	if c.scope.tokenScoped && c.scope.tokenID == "" {
		return ErrUnauthenticated
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.State() == StateClosed {
		return errors.New("クローズ済みの接続は登録できません")
	}
	c.setState(StateOpen)
	h.conns[c.id] = c
	return nil
}

// Unregister は接続をレジストリから除去し、状態をClosedにする。
// 冪等であり、ネットワーク切断・プロトコル違反・明示的な切断の
// いずれの経路からも安全に呼び出せる。
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c.id)
	c.setState(StateClosed)
	c.close()
}

// Publish は確定済みイベントを全てのOpen接続へ配信する。
// 永続化が完了したレコードに対してのみ呼び出すこと。
//
// 配信は接続ごとに独立したノンブロッキング送信で行い、送信キューが
// 満杯の接続はDrainingへ移して切り離す。発行側は遅い購読者を待たず、
// 失敗した配信の再送も行わない（接続ごと・イベントごとに最大1回の試行）。
// 戻り値はキューへの投入に成功した接続数。
func (h *Hub) Publish(ev event.NotifyEvent) int {
	msg := event.NewEventMessage(ev)

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, c := range h.conns {
		if c.State() != StateOpen {
			continue
		}
		select {
		case c.send <- msg:
			delivered++
		default:
			// キュー超過。購読者が遅すぎるため接続を切り離す
			log.Printf("送信キューが満杯のため接続を切断します: conn=%s", id)
			c.setState(StateDraining)
			delete(h.conns, id)
			c.close()
		}
	}
	h.published++
	return delivered
}

// Len は登録中の接続数を返す。
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Published は発行されたイベントの累計数を返す。
func (h *Hub) Published() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published
}
