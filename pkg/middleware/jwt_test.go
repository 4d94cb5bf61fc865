package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のセッション署名シークレット。
const testSecret = "test-secret-key-for-session-unit-tests"

// TestGenerateSessionToken はGenerateSessionToken関数を検証する。
func TestGenerateSessionToken(t *testing.T) {
	t.Parallel()

	t.Run("正常にセッショントークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateSessionToken(testSecret, "user-123", "alice")
		if err != nil {
			t.Fatalf("GenerateSessionToken()でエラーが発生: %v", err)
		}
		if tokenStr == "" {
			t.Fatal("GenerateSessionToken()が空文字列を返した")
		}

		// トークンをパースして検証する
		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if !token.Valid {
			t.Fatal("トークンが無効")
		}

		if claims.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
		}
		if claims.Username != "alice" {
			t.Errorf("Username = %q, want %q", claims.Username, "alice")
		}
		if claims.Issuer != "rutify" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "rutify")
		}
	})

	t.Run("トークンの有効期限がSessionTTL後であること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateSessionToken(testSecret, "user-exp", "bob")
		if err != nil {
			t.Fatalf("GenerateSessionToken()でエラーが発生: %v", err)
		}

		claims := &SessionClaims{}
		_, err = jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}

		expectedExpiry := before.Add(SessionTTL)
		// 有効期限がSessionTTL後の前後1分以内であること
		if claims.ExpiresAt.Time.Before(expectedExpiry.Add(-1 * time.Minute)) {
			t.Errorf("ExpiresAt = %v, 期待する最小値: %v", claims.ExpiresAt.Time, expectedExpiry.Add(-1*time.Minute))
		}
		if claims.ExpiresAt.Time.After(expectedExpiry.Add(1 * time.Minute)) {
			t.Errorf("ExpiresAt = %v, 期待する最大値: %v", claims.ExpiresAt.Time, expectedExpiry.Add(1*time.Minute))
		}
	})
}

// setupAuthRouter はSessionAuthミドルウェアを適用したテスト用ルーターを構築する。
func setupAuthRouter(secret string) *gin.Engine {
	router := gin.New()
	router.GET("/protected", SessionAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  GetUserID(c),
			"username": c.GetString("username"),
		})
	})
	return router
}

// TestSessionAuth はSessionAuthミドルウェアの認証動作を検証する。
func TestSessionAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでアクセスできること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateSessionToken(testSecret, "user-abc", "carol")
		if err != nil {
			t.Fatalf("トークンの生成に失敗: %v", err)
		}

		router := setupAuthRouter(testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var result map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if result["user_id"] != "user-abc" {
			t.Errorf("user_id: got %q, want %q", result["user_id"], "user-abc")
		}
		if result["username"] != "carol" {
			t.Errorf("username: got %q, want %q", result["username"], "carol")
		}
	})

	t.Run("Authorizationヘッダーがない場合は401", func(t *testing.T) {
		t.Parallel()

		router := setupAuthRouter(testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Bearer形式でない場合は401", func(t *testing.T) {
		t.Parallel()

		router := setupAuthRouter(testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic abcdef")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("別のシークレットで署名されたトークンは401", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateSessionToken("another-secret-key-used-by-someone-else", "user-x", "mallory")
		if err != nil {
			t.Fatalf("トークンの生成に失敗: %v", err)
		}

		router := setupAuthRouter(testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("期限切れトークンは401", func(t *testing.T) {
		t.Parallel()

		claims := SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
				Issuer:    "rutify",
			},
			UserID:   "user-expired",
			Username: "dave",
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		router := setupAuthRouter(testSecret)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
