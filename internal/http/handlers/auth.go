package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/stockroom/internal/account"
	"github.com/geocoder89/stockroom/internal/actorctx"
	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/geocoder89/stockroom/internal/authz"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type Accounts interface {
	Register(ctx context.Context, in user.RegisterInput) (user.User, error)
	Login(ctx context.Context, in user.LoginInput) (account.LoginResult, error)
}

type AuthHandler struct {
	accounts Accounts
}

func NewAuthHandler(accounts Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterInput

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates this request
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	created, err := h.accounts.Register(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    created.Public(),
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.accounts.Login(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"user":      res.User,
	})
}

// Me returns the principal resolved by the auth middleware.
func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := actorctx.UserFrom(ctx.Request.Context())
	if !ok {
		RespondErr(ctx, apperr.New(apperr.KindUnauthenticated, authz.MsgAuthRequired))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u.Public()})
}
