package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/pkg/response"
)

// AccountHandler exposes the account lifecycle over HTTP. It only translates
// between request payloads and the directory/change services; all invariants
// live below.
type AccountHandler struct {
	directory *services.DirectoryService
	changes   *services.ChangeService
	accounts  *services.AccountService
	tokens    *auth.TokenService
}

func NewAccountHandler(
	directory *services.DirectoryService,
	changes *services.ChangeService,
	accounts *services.AccountService,
	tokens *auth.TokenService,
) *AccountHandler {
	return &AccountHandler{
		directory: directory,
		changes:   changes,
		accounts:  accounts,
		tokens:    tokens,
	}
}

type registerRequest struct {
	Nickname string `json:"nickname" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// POST /api/accounts
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.directory.Create(c.Request.Context(), services.CreateAccountInput{
		Nickname: req.Nickname,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, accountPayload(account))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.directory.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.tokens.Mint(account)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_token": token,
		"account":       accountPayload(account),
	})
}

// GET /api/accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	account, err := h.directory.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, accountPayload(account))
}

// DELETE /api/accounts/:id
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	if err := h.directory.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type nicknameRequest struct {
	Nickname string `json:"nickname" validate:"required"`
}

// PATCH /api/accounts/:id/nickname
func (h *AccountHandler) SetNickname(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req nicknameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.SetNickname(c.Request.Context(), nil, id, req.Nickname); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"nickname": req.Nickname})
}

// GET /api/accounts/:id/change
func (h *AccountHandler) ChangeState(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	state, err := h.changes.State(c.Request.Context(), nil, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"pending_change": state.String()})
}

type emailChangeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/accounts/:id/email
func (h *AccountHandler) RequestEmailChange(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req emailChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.directory.RequestEmailChange(c.Request.Context(), id, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"change_token": token})
}

type passwordChangeRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// POST /api/accounts/:id/password
func (h *AccountHandler) RequestPasswordChange(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req passwordChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.directory.RequestPasswordChange(c.Request.Context(), id, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"change_token": token})
}

type validateChangeRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /api/changes/validate
func (h *AccountHandler) ValidateChange(c *gin.Context) {
	var req validateChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.directory.Validate(c.Request.Context(), req.Token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"validated": true})
}

func accountPayload(account *models.Account) gin.H {
	return gin.H{
		"id":         account.ID,
		"nickname":   account.Nickname,
		"email":      account.Email,
		"verified":   account.Verified,
		"created_at": account.CreatedAt,
	}
}
