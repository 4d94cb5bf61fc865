// Package notify は通知レコードの永続化ストアを提供する。
//
// 追記・一覧・削除と、単一トランザクションによる一貫した統計読み取りを行う。
// idはストアの生存期間を通じて厳密に単調増加し、削除後も再利用されない。
package notify
