package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"user_backend/internal/apperror"
	"user_backend/internal/middleware"
	"user_backend/internal/model"
	"user_backend/internal/service"
)

const avatarFormField = "avatar"

// UserHandler handles user account requests
type UserHandler struct {
	service service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(s service.UserService) *UserHandler {
	return &UserHandler{service: s}
}

type listQuery struct {
	Limit  int `form:"limit" binding:"min=0"`
	Offset int `form:"offset" binding:"min=0"`
}

func parseUserID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.BadRequest("Invalid user ID", apperror.Details{"id": c.Param("id")})
	}
	return id, nil
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := middleware.AuthUser(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.AbortWithError(c, bindingError(err))
		return
	}

	users, err := h.service.List(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parseUserID(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	actor, err := middleware.AuthUser(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.update(c, actor, actor.ID)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, err := middleware.AuthUser(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	id, err := parseUserID(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.update(c, actor, id)
}

func (h *UserHandler) update(c *gin.Context, actor *model.User, id int64) {
	var req model.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := parseUserID(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	user, err := middleware.AuthUser(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	file, err := c.FormFile(avatarFormField)
	if err != nil {
		middleware.AbortWithError(c, apperror.BadRequest("Avatar file is required", apperror.Details{"field": avatarFormField}))
		return
	}
	f, err := file.Open()
	if err != nil {
		middleware.AbortWithError(c, apperror.BadRequest("Avatar file could not be read", nil))
		return
	}
	defer f.Close()

	updated, err := h.service.SetAvatar(c.Request.Context(), user.ID, service.AvatarUpload{
		Filename: file.Filename,
		Size:     file.Size,
		Content:  f,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RegisterUserRoutes registers user routes behind authMW
func (h *UserHandler) RegisterUserRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	users := rg.Group("/users", authMW)
	{
		users.GET("/me", h.GetMe)
		users.PATCH("/me", h.UpdateMe)
		users.PUT("/me/avatar", h.UploadAvatar)
		users.PATCH("/:id", h.UpdateUser)
	}

	admin := users.Group("", middleware.AdminMiddleware())
	{
		admin.GET("", h.ListUsers)
		admin.GET("/:id", h.GetUser)
		admin.DELETE("/:id", h.DeleteUser)
	}
}
