package auth

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"authgate/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler exposes the auth state machine over HTTP.
type Handler struct {
	service   *Service
	transport *Transport
}

func NewHandler(service *Service, transport *Transport) *Handler {
	return &Handler{
		service:   service,
		transport: transport,
	}
}

func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/register", h.Register)
		authGroup.GET("/check", h.Check)
		authGroup.GET("/rt", h.Refresh)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/email/:email", h.EmailExists)
	}
}

// RegisterProtectedRoutes expects a group already behind RequireAuth.
func (h *Handler) RegisterProtectedRoutes(protected gin.IRouter) {
	protected.GET("/users/me", h.GetMe)
}

// RegisterAdminRoutes expects a group behind RequireAuth and RequireRole("admin").
func (h *Handler) RegisterAdminRoutes(admin gin.IRouter) {
	admin.POST("/users/:id/sessions/revoke", h.RevokeSessions)
}

// Login авторизует пользователя по email и паролю.
// @Summary		Login
// @Description	Проверяет учётные данные, открывает новую сессию и выдаёт пару токенов (в теле ответа или в cookie, в зависимости от режима транспорта).
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	LoginRequest	true	"email и пароль"
// @Success		200	{object}	AuthResponse
// @Failure		400	{object}	map[string]interface{} "300 нет учётных данных, 301 неверный email, 302 неверный пароль, 307 аккаунт удалён"
// @Failure		401	{object}	map[string]interface{} "303 аккаунт неактивен, 305 аккаунт сброшен"
// @Router		/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.transport.Attach(c, res))
}

// Register создаёт пользователя и сразу открывает первую сессию.
// @Summary		Register
// @Description	Регистрирует пользователя. Если передан account, он создаётся в леджере в той же транзакции; при ошибке леджера пользователь не создаётся.
// @Tags		Auth
// @Accept		json
// @Produce		json
// @Param		body	body	RegisterRequest	true	"payload"
// @Success		201	{object}	AuthResponse
// @Failure		400	{object}	map[string]interface{} "201 нет параметра, 210 неверный формат (data = поле)"
// @Failure		409	{object}	map[string]interface{} "350 account, 351 nickname, 352 email уже заняты"
// @Failure		503	{object}	map[string]interface{} "Леджер или база недоступны"
// @Router		/auth/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, h.transport.Attach(c, res))
}

// Check проверяет access-токен.
// @Summary		Check access token
// @Tags		Auth
// @Security	BearerAuth
// @Produce		json
// @Success		200	{object}	Identity
// @Failure		401	{object}	map[string]interface{} "401 токен недействителен, 305 аккаунт сброшен"
// @Router		/auth/check [GET]
func (h *Handler) Check(c *gin.Context) {
	identity, err := h.service.Check(c.Request.Context(), h.transport.AccessToken(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, identity)
}

// Refresh обменивает refresh-токен на новую пару. Повторное использование
// уже погашенного токена сбрасывает все сессии пользователя.
// @Summary		Refresh tokens
// @Tags		Auth
// @Security	BearerAuth
// @Produce		json
// @Success		200	{object}	AuthResponse
// @Failure		401	{object}	map[string]interface{} "305 аккаунт сброшен, 306 повторное использование, 310 истёк, 401 недействителен"
// @Router		/auth/rt [GET]
// @Router		/auth/refresh [POST]
func (h *Handler) Refresh(c *gin.Context) {
	res, err := h.service.Refresh(c.Request.Context(), h.transport.RefreshToken(c))
	if err != nil {
		switch KindOf(err) {
		case KindToken, KindReplay, KindAccountState:
			h.transport.Clear(c)
		}
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.transport.Attach(c, res))
}

// Logout завершает сессию. Cookie очищаются в любом случае.
// @Summary		Logout
// @Tags		Auth
// @Security	BearerAuth
// @Produce		json
// @Success		200	{object}	MessageResponse
// @Failure		401	{object}	map[string]interface{}
// @Router		/auth/logout [POST]
func (h *Handler) Logout(c *gin.Context) {
	err := h.service.Logout(c.Request.Context(), h.transport.LogoutToken(c))
	h.transport.Clear(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, MessageResponse{Message: "logged out"})
}

// EmailExists сообщает, занят ли email. Неизвестный email отдаёт 404:
// клиент по этому коду переключается на регистрацию.
// @Summary		Email exists
// @Tags		Auth
// @Produce		json
// @Param		email	path	string	true	"email"
// @Success		200	{object}	EmailExistsResponse
// @Failure		400	{object}	map[string]interface{} "210 неверный формат"
// @Failure		404	{object}	map[string]interface{} "404 email не найден"
// @Failure		429	{object}	map[string]interface{} "Слишком много запросов"
// @Router		/auth/email/{email} [GET]
func (h *Handler) EmailExists(c *gin.Context) {
	exists, err := h.service.EmailExists(c.Request.Context(), c.Param("email"), c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !exists {
		h.fail(c, ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, EmailExistsResponse{Exists: true})
}

// GetMe возвращает профиль текущего пользователя.
// @Summary		Current user
// @Tags		Users
// @Security	BearerAuth
// @Produce		json
// @Success		200	{object}	domain.PublicProfile
// @Failure		401	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/users/me [GET]
func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		h.fail(c, ErrUnauthorized)
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// RevokeSessions принудительно завершает все сессии пользователя (без сброса аккаунта).
// @Summary		Revoke all sessions
// @Tags		Admin
// @Security	BearerAuth
// @Produce		json
// @Param		id	path	int	true	"ID пользователя"
// @Success		200	{object}	RevokeSessionsResponse
// @Failure		403	{object}	map[string]interface{}
// @Failure		404	{object}	map[string]interface{}
// @Router		/admin/users/{id}/sessions/revoke [POST]
func (h *Handler) RevokeSessions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		h.fail(c, ErrNotFound)
		return
	}

	n, err := h.service.RevokeSessions(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, RevokeSessionsResponse{Revoked: n})
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so the
// service reports the missing fields itself.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, CodeMalformedBody)
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code, field := HTTPError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if field != "" {
		response.ErrorWithData(c, status, code, field)
		return
	}
	response.Error(c, status, code)
}
