package stream

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/alone-wolf/rutify/pkg/event"
)

// State はストリーム接続の状態。
// Connecting → Open → Draining → Closed の順にのみ遷移し、Closedは終端。
type State int32

const (
	// StateConnecting は登録前の初期状態。
	StateConnecting State = iota
	// StateOpen は登録済みで配信対象の状態。
	StateOpen
	// StateDraining はバックプレッシャーまたはクローズ処理中の状態。
	StateDraining
	// StateClosed は終端状態。レジストリからの除去を伴う。
	StateClosed
)

// String はStateの文字列表現を返す。
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Scope はストリーム接続の認可スコープを表す。
// 非公開トークンで認可された接続か、レガシーの無認可接続かを区別する。
// スコープはアクセスの可否のみを決め、配信内容のフィルタリングは行わない。
type Scope struct {
	// tokenScoped はトークン認可された接続かどうか。
	tokenScoped bool
	// tokenID は認可に使われた通知トークンのID。
	tokenID string
}

// Unscoped はレガシーの無認可スコープを返す。
func Unscoped() Scope {
	return Scope{}
}

// TokenScoped は検証済み通知トークンのIDに紐づくスコープを返す。
// tokenIDには VerifyTokenForStream が返したトークンのIDを渡すこと。
func TokenScoped(tokenID string) Scope {
	return Scope{tokenScoped: true, tokenID: tokenID}
}

// IsTokenScoped はトークン認可されたスコープかどうかを返す。
func (s Scope) IsTokenScoped() bool {
	return s.tokenScoped
}

// TokenID は認可に使われたトークンのIDを返す。無認可スコープでは空文字列。
func (s Scope) TokenID() string {
	return s.tokenID
}

// defaultQueueSize は接続ごとの送信キューの上限。
// 超過した接続は切り離される（発行側はブロックしない）。
const defaultQueueSize = 64

// Conn はレジストリに登録される1本のストリーム接続。
// 送信キューは有界で、ネットワークへの書き込みは接続ごとの
// ライターゴルーチンが担当する。
type Conn struct {
	// id は接続の一意識別子（UUID）。
	id string
	// scope は接続の認可スコープ。
	scope Scope
	// send は有界の送信キュー。
	send chan event.Message
	// done は接続の破棄を通知するチャネル。
	done chan struct{}
	// state は接続の状態。
	state atomic.Int32
	// closeOnce はdoneのクローズを一度だけ行うためのガード。
	closeOnce sync.Once
}

// NewConn は新しいストリーム接続を生成する。初期状態はConnecting。
func NewConn(scope Scope) *Conn {
	return newConn(scope, defaultQueueSize)
}

// newConn はキューサイズを指定して接続を生成する。
func newConn(scope Scope, queueSize int) *Conn {
	c := &Conn{
		id:    uuid.New().String(),
		scope: scope,
		send:  make(chan event.Message, queueSize),
		done:  make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// ID は接続の一意識別子を返す。
func (c *Conn) ID() string { return c.id }

// Scope は接続の認可スコープを返す。
func (c *Conn) Scope() Scope { return c.scope }

// State は接続の現在の状態を返す。
func (c *Conn) State() State { return State(c.state.Load()) }

// Send は送信キューの受信側を返す。ライターゴルーチンが消費する。
func (c *Conn) Send() <-chan event.Message { return c.send }

// Done は接続の破棄通知チャネルを返す。
// クローズされたら、この接続のライターは残りの書き込みを中断して終了する。
// 1本の接続の破棄は他の接続の配信に影響しない。
func (c *Conn) Done() <-chan struct{} { return c.done }

// setState は接続の状態を更新する。
func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// close はdoneチャネルをクローズする。何度呼んでも安全。
func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
