package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"user-admin/internal/service"
)

type loginUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Roles    string `json:"roles"`
}

type loginResponse struct {
	Message   string            `json:"message"`
	Token     string            `json:"token"`
	ExpiresAt string            `json:"expiresAt"`
	User      loginUserResponse `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordAuth("register", "validation_error")
		writeValidationError(c, []string{"request body must be a JSON object with string fields"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		h.recordAuth("register", authResult(err))
		h.writeServiceError(c, err)
		return
	}

	h.recordAuth("register", "success")
	c.JSON(http.StatusCreated, gin.H{
		"message":  "User created successfully",
		"username": user.Username,
		"roles":    user.Role,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordAuth("login", "validation_error")
		writeValidationError(c, []string{"request body must be a JSON object with string fields"})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		h.recordAuth("login", authResult(err))
		h.writeServiceError(c, err)
		return
	}

	h.recordAuth("login", "success")
	c.JSON(http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC().Format(timeLayout),
		User: loginUserResponse{
			ID:       res.User.ID,
			Username: res.User.Username,
			Roles:    res.User.Role.String(),
		},
	})
}

func (h *Handler) recordAuth(operation, result string) {
	if h.metrics != nil {
		h.metrics.RecordAuthAttempt(operation, result)
	}
}

func authResult(err error) string {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return "validation_error"
	case errors.Is(err, service.ErrConflict):
		return "conflict"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_credentials"
	}
	return "error"
}
