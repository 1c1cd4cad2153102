package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aria-setlist/backend/internal/models"
	"github.com/aria-setlist/backend/pkg/response"
	"github.com/aria-setlist/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name" binding:"required"`
	Role        string `json:"role"` // optional, defaults to user
	// InviteToken, when present, redeems an email invitation right after
	// the account is created so the inviting host shows up as pending.
	InviteToken string `json:"invite_token"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// RedeemFunc finishes an email invitation after account creation.
type RedeemFunc func(ctx context.Context, token string) error

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo        *Repository
	jwt         *JWTService
	redeemToken RedeemFunc
	logger      *zap.Logger
}

// NewHandler creates an auth handler. redeemToken may be nil when email
// invitations are not wired (e.g. in tests).
func NewHandler(repo *Repository, jwt *JWTService, redeemToken RedeemFunc, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, redeemToken: redeemToken, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	role := models.RoleUser
	if req.Role != "" {
		switch req.Role {
		case "admin":
			role = models.RoleAdmin
		case "manager":
			role = models.RoleManager
		case "user":
			role = models.RoleUser
		default:
			response.BadRequest(c, "invalid role")
			return
		}
	}

	existing, err := h.repo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Internal(c, "failed to check email")
		return
	}
	if existing != nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.DisplayName, role)
	if err != nil {
		response.Internal(c, "failed to create user")
		return
	}

	// Invitation redemption is best-effort: the account exists either way
	// and the invitee can still be re-invited by id.
	if req.InviteToken != "" && h.redeemToken != nil {
		if err := h.redeemToken(c.Request.Context(), req.InviteToken); err != nil {
			h.logger.Warn("invite token redemption after registration failed",
				zap.String("email", req.Email), zap.Error(err))
		}
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil || user == nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}
