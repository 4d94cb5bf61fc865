// Package server は通知サーバーのHTTP / WebSocketサーフェスを提供する。
//
// 通知の受理、履歴・統計API、ユーザー認証と通知トークンの管理、
// およびストリーム購読のエンドポイントを1つのGinルーターに束ねる。
package server
