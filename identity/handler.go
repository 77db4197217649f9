package identity

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	ErrMissingTokenStr = "missing-token"
	ErrExpiredTokenStr = "expired-token"
	ErrUnknownStr      = "unknown-error"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// HelloHandler issues a signed player identity. A client that already holds
// a valid token gets the same player id back, so reconnects keep their
// identity; everyone else is minted a fresh one.
func (h *Handler) HelloHandler(ctx *gin.Context) {
	id := ""

	if token, err := ctx.Cookie("player_token"); err == nil {
		if verified, err := h.manager.Verify(token); err == nil {
			id = verified
		}
	}

	if id == "" {
		id = NewPlayerID()
	}

	token, err := h.manager.Issue(id, time.Now())
	if err != nil {
		slog.Error("HelloHandler: token generation failed", "error", err.Error())
		ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		return
	}

	ctx.SetCookie("player_token", token, int(h.manager.maxAge.Seconds()), "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{"player_id": id, "token": token})
}

// RequireIdentityMiddleware resolves the caller's player id from the
// "token" query parameter or the player_token cookie and stores it on the
// context. Websocket clients can only pass query parameters.
func (h *Handler) RequireIdentityMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.Query("token")
		if token == "" {
			if cookieToken, err := ctx.Cookie("player_token"); err == nil {
				token = cookieToken
			}
		}
		if token == "" {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}

		id, err := h.manager.Verify(token)
		if err != nil {
			slog.Info("RequireIdentityMiddleware: rejected token",
				"ip", ctx.ClientIP(),
				"error", err.Error(),
			)
			ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)
			ctx.Abort()
			return
		}

		ctx.Set("playerID", id)
		ctx.Next()
	}
}
