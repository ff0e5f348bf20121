package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-registry/internal/domain"
	"user-registry/internal/service"
)

// Handler wires HTTP routes to the user and health services.
type Handler struct {
	users  service.UserService
	health *service.HealthService
	logger logrus.FieldLogger
}

func NewHandler(users service.UserService, health *service.HealthService, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		users:  users,
		health: health,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(
		requestIDMiddleware(),
		requestLogger(h.logger),
		gin.CustomRecovery(h.handlePanic),
		corsMiddleware(),
	)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
	})
	router.GET("/health", h.healthCheck)

	users := router.Group("/users")
	{
		users.GET("", h.listUsers)
		users.POST("", h.createUser)
		users.GET("/:id", h.getUser)
		users.PATCH("/:id", h.updateUser)
		users.DELETE("/:id", h.deleteUser)
	}
}

// UserResponse is the wire shape of a user.
type UserResponse struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	CreatedAt *string `json:"created_at"`
}

// UserListResponse is the wire shape of a list page.
type UserListResponse struct {
	Users   []UserResponse `json:"users"`
	Count   int            `json:"count"`
	Total   int64          `json:"total"`
	Skip    int            `json:"skip"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

func (h *Handler) healthCheck(c *gin.Context) {
	status := h.health.Check(c.Request.Context())
	if !status.Healthy() {
		h.logger.WithField("error", status.Error).Warn("health check failed")
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) listUsers(c *gin.Context) {
	params := service.ListUsersParams{Search: c.Query("search")}

	verr := &domain.ValidationError{}
	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, domain.FieldError{Field: "limit", Message: "must be an integer"})
		} else {
			params.Limit = &limit
		}
	}
	if raw, ok := c.GetQuery("skip"); ok {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, domain.FieldError{Field: "skip", Message: "must be an integer"})
		} else {
			params.Skip = skip
		}
	}
	if len(verr.Fields) > 0 {
		h.writeError(c, verr)
		return
	}

	page, err := h.users.List(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := UserListResponse{
		Users:   make([]UserResponse, len(page.Users)),
		Count:   page.Count,
		Total:   page.Total,
		Skip:    page.Skip,
		Limit:   page.Limit,
		HasMore: page.HasMore,
	}
	for i := range page.Users {
		resp.Users[i] = userToResponse(page.Users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) createUser(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindError(err))
		return
	}

	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	var req service.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindError(err))
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	deleted, err := h.users.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "message": "user deleted"})
}

func (h *Handler) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, domain.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func userToResponse(user domain.User) UserResponse {
	resp := UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
	if user.CreatedAt != nil && !user.CreatedAt.IsZero() {
		v := user.CreatedAt.Format(time.RFC3339)
		resp.CreatedAt = &v
	}
	return resp
}
