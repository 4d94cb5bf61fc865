// Package stream はストリーム接続のレジストリと配信のファンアウトを提供する。
//
// Hubが接続集合を所有し、Register / Unregister / Publish を互いに
// 原子的に実行する。各接続は有界の送信キューを持ち、キューを超過した
// 遅い購読者は発行側をブロックさせずに切り離される。
package stream
