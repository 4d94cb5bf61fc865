package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// パッケージ境界のエラー。ハンドラ側でerrors.IsによりHTTPステータスへ変換する。
var (
	// ErrDuplicateUser は既に存在するユーザー名での登録を表す。
	ErrDuplicateUser = errors.New("ユーザー名は既に使用されています")
	// ErrInvalidCredential はユーザー名またはパスワードの不一致を表す。
	ErrInvalidCredential = errors.New("ユーザー名またはパスワードが正しくありません")
	// ErrTokenNotFound は存在しないトークンIDの操作を表す。
	ErrTokenNotFound = errors.New("トークンが見つかりません")
	// ErrForbidden は他ユーザーが所有するトークンへの操作を表す。
	ErrForbidden = errors.New("このトークンを操作する権限がありません")
	// ErrInvalidToken はストリーム認可に失敗したシークレットを表す。
	ErrInvalidToken = errors.New("通知トークンが無効です")
)

// secretBytes は通知トークンのシークレット長（バイト）。256ビットのエントロピーを持つ。
const secretBytes = 32

// User は登録済みユーザー。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string `json:"id"`
	// Username はユーザー名。
	Username string `json:"username"`
	// PasswordHash はbcryptハッシュ。レスポンスには含めない。
	PasswordHash string `json:"-"`
	// CreatedAt はユーザーの作成日時。
	CreatedAt time.Time `json:"created_at"`
}

// Token はストリーム購読を認可する通知トークン。
// シークレットの平文は発行時に一度だけ返し、以後は取得できない。
type Token struct {
	// ID はトークンの一意識別子（UUID）。
	ID string `json:"id"`
	// UserID は所有ユーザーのID。
	UserID string `json:"user_id"`
	// Usage はトークンの用途ラベル。
	Usage string `json:"usage"`
	// Revoked は失効フラグ。失効は恒久的で取り消せない。
	Revoked bool `json:"revoked"`
	// CreatedAt はトークンの作成日時。
	CreatedAt time.Time `json:"created_at"`
	// LastUsedAt は最終使用日時。未使用の場合はnil。
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Service はユーザー認証と通知トークンの管理を行う。
type Service struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewService は新しい認証サービスを生成する。
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Register は新規ユーザーを登録する。
// パスワードはbcryptでハッシュ化して保存し、平文は保持しない。
// ユーザー名が既に存在する場合は ErrDuplicateUser を返す。
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}

	return user, nil
}

// Authenticate はユーザー名とパスワードを照合し、一致したユーザーを返す。
// ユーザーが存在しない場合とパスワード不一致の場合を区別せず、
// いずれも ErrInvalidCredential を返す。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.userByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	return user, nil
}

// IssueToken は新しい通知トークンを発行する。
// シークレットは256ビットの乱数から生成し、SHA-256ハッシュのみ保存する。
// 戻り値のシークレット平文はこの呼び出しでしか得られない。
func (s *Service) IssueToken(ctx context.Context, userID, usage string) (string, *Token, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("シークレットの生成に失敗: %w", err)
	}
	secret := hex.EncodeToString(buf)

	token := &Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Usage:     usage,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, secret_hash, usage, revoked, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		token.ID, token.UserID, hashSecret(secret), token.Usage, token.CreatedAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("トークンの作成に失敗: %w", err)
	}

	return secret, token, nil
}

// ListTokens は指定ユーザーが所有するトークンの一覧を返す。
// シークレットおよびそのハッシュは含めない。
func (s *Service) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, usage, revoked, created_at, last_used_at
		   FROM tokens WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("トークン一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tokens := make([]Token, 0)
	for rows.Next() {
		var t Token
		var revoked int
		var lastUsed sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.Usage, &revoked, &t.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("トークン行の読み取りに失敗: %w", err)
		}
		t.Revoked = revoked != 0
		if lastUsed.Valid {
			lastUsedAt := lastUsed.Time
			t.LastUsedAt = &lastUsedAt
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トークン一覧の走査に失敗: %w", err)
	}
	return tokens, nil
}

// RevokeToken は指定トークンを失効させる。失効は恒久的で取り消せない。
// トークンが存在しない場合は ErrTokenNotFound、
// 他ユーザーの所有である場合は ErrForbidden を返す。
func (s *Service) RevokeToken(ctx context.Context, userID, tokenID string) error {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM tokens WHERE id = ?`, tokenID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("トークンの取得に失敗: %w", err)
	}

	if ownerID != userID {
		return ErrForbidden
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE id = ?`, tokenID); err != nil {
		return fmt.Errorf("トークンの失効処理に失敗: %w", err)
	}
	return nil
}

// VerifyTokenForStream はストリーム購読のためにシークレットを検証する。
// ハッシュが一致し、かつ失効していないトークンのみ認可する。
// 失効済みトークンは新規接続を一切認可しない。
func (s *Service) VerifyTokenForStream(ctx context.Context, secret string) (*User, *Token, error) {
	var t Token
	var revoked int
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, usage, revoked, created_at, last_used_at
		   FROM tokens WHERE secret_hash = ? AND revoked = 0`,
		hashSecret(secret),
	).Scan(&t.ID, &t.UserID, &t.Usage, &revoked, &t.CreatedAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("トークンの照合に失敗: %w", err)
	}
	t.Revoked = revoked != 0
	if lastUsed.Valid {
		lastUsedAt := lastUsed.Time
		t.LastUsedAt = &lastUsedAt
	}

	user, err := s.userByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	// 最終使用日時の更新は認可結果に影響させない
	if _, err := s.db.ExecContext(ctx, `UPDATE tokens SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), t.ID); err != nil {
		log.Printf("トークン最終使用日時の更新に失敗: %v", err)
	}

	return user, &t, nil
}

// userByUsername はユーザー名でユーザーを検索する。
func (s *Service) userByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ユーザーの検索に失敗: %w", err)
	}
	return &u, nil
}

// userByID はIDでユーザーを検索する。
func (s *Service) userByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ユーザーの検索に失敗: %w", err)
	}
	return &u, nil
}

// hashSecret はシークレットのSHA-256ハッシュを16進文字列で返す。
func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
