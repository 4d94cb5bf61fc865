// Package auth はユーザー認証と通知トークンの管理を提供する。
//
// ユーザー登録・ログイン（bcryptによるパスワード照合）、
// ストリーム購読を認可する通知トークンの発行・一覧・失効・検証を行う。
// セッショントークンの署名と検証は pkg/middleware が担当する。
package auth
