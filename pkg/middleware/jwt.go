package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL はセッショントークンの有効期間。
// ユーザーレコードの寿命とは独立して失効する。
const SessionTTL = 24 * time.Hour

// sessionIssuer はセッショントークンの発行者名。
const sessionIssuer = "rutify"

// SessionClaims はセッショントークンのクレーム（ペイロード）を表す。
// 認証済みユーザーの識別情報を保持する。
type SessionClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Username はユーザー名。
	Username string `json:"username"`
}

// GenerateSessionToken はユーザー情報からセッショントークンを生成する。
// ログイン成功時に発行され、有効期間は SessionTTL。
func GenerateSessionToken(secret, userID, username string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// SessionAuth はセッショントークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "username" を設定する。
// ヘッダー欠落・形式不正・署名不一致・期限切れはいずれも401で弾く。
func SessionAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "セッショントークンが無効です",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// GetUserID はGinコンテキストから認証済みユーザーのIDを取得する。
// SessionAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
