package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alone-wolf/rutify/internal/auth"
	"github.com/alone-wolf/rutify/pkg/middleware"
)

// credentialInput はユーザー登録・ログインの入力構造。
type credentialInput struct {
	// Username はユーザー名（必須）。
	Username string `json:"username" binding:"required"`
	// Password はパスワード平文（必須）。保存時はbcryptハッシュのみ残る。
	Password string `json:"password" binding:"required"`
}

// tokenInput は通知トークン発行の入力構造。
type tokenInput struct {
	// Usage はトークンの用途ラベル（省略可）。
	Usage string `json:"usage"`
}

// handleRegister は新規ユーザー登録ハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input credentialInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザー名とパスワードは必須です"})
			return
		}

		user, err := s.auth.Register(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			if errors.Is(err, auth.ErrDuplicateUser) {
				c.JSON(http.StatusConflict, gin.H{"error": "ユーザー名は既に使用されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			log.Printf("ユーザー登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status": "ok",
			"data": gin.H{
				"id":         user.ID,
				"username":   user.Username,
				"created_at": user.CreatedAt.Format(time.RFC3339),
			},
		})
	}
}

// handleLogin はログインハンドラを返す。
// 認証に成功した場合、有効期間付きのセッショントークンを発行する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input credentialInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザー名とパスワードは必須です"})
			return
		}

		user, err := s.auth.Authenticate(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredential) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログイン処理に失敗しました"})
			log.Printf("ログインエラー: %v", err)
			return
		}

		sessionToken, err := middleware.GenerateSessionToken(s.cfg.JWTSecret, user.ID, user.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッショントークンの発行に失敗しました"})
			log.Printf("セッショントークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data": gin.H{
				"token":      sessionToken,
				"user_id":    user.ID,
				"username":   user.Username,
				"expires_at": time.Now().Add(middleware.SessionTTL).Format(time.RFC3339),
			},
		})
	}
}

// handleListTokens は認証済みユーザーが所有する通知トークン一覧を返すハンドラを返す。
// シークレットおよびそのハッシュはレスポンスに含まれない。
func (s *Server) handleListTokens() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
			return
		}

		tokens, err := s.auth.ListTokens(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン一覧の取得に失敗しました"})
			log.Printf("トークン一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"data":   tokens,
		})
	}
}

// handleCreateToken は通知トークンを発行するハンドラを返す。
// シークレットの平文はこのレスポンスでのみ返し、以後は取得できない。
func (s *Server) handleCreateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
			return
		}

		var input tokenInput
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		secret, token, err := s.auth.IssueToken(c.Request.Context(), userID, input.Usage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status": "ok",
			"data": gin.H{
				"token":      secret,
				"token_item": token,
			},
		})
	}
}

// handleRevokeToken は通知トークンを失効させるハンドラを返す。
// 失効は恒久的であり、以後このトークンでの新規購読は認可されない。
func (s *Server) handleRevokeToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
			return
		}

		tokenID := c.Param("id")
		err := s.auth.RevokeToken(c.Request.Context(), userID, tokenID)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "トークンが見つかりません"})
			case errors.Is(err, auth.ErrForbidden):
				c.JSON(http.StatusForbidden, gin.H{"error": "このトークンを操作する権限がありません"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの失効に失敗しました"})
				log.Printf("トークン失効エラー: %v", err)
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
