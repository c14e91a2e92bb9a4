package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"user-admin/internal/service"
)

const timeLayout = time.RFC3339Nano

func (h *Handler) listUsers(c *gin.Context) {
	in := service.ListUsersInput{
		Roles:       append(c.QueryArray("roles"), c.QueryArray("roles[]")...),
		SearchQuery: c.Query("searchQuery"),
	}

	users, err := h.users.List(c.Request.Context(), in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) createUser(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, []string{"request body must be a JSON object with string fields"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req service.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, []string{"request body must be a JSON object with string fields"})
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := h.users.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func userIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	// an id that cannot exist is simply an absent user
	if err := uuid.Validate(id); err != nil {
		writeError(c, http.StatusNotFound, msgUserNotFound)
		return "", false
	}
	return id, true
}
