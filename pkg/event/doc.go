// Package event は通知イベントのワイヤ形式とストリームメッセージの型を提供する。
//
// 購読クライアントへ配信される NotifyEvent と、接続の送信キューに積まれる
// Message（閉じたメッセージ種別の集合）を定義する。
package event
