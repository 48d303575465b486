package identity

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrValidation, Status: http.StatusBadRequest},
	{Error: ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
	{Error: ErrInvalidHash, Status: http.StatusInternalServerError, Message: "internal error", Log: true},
}

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Handler{
		service:   service,
		validator: v,
	}
}

// RegisterPublicRoutes registers register and login. limit wraps both
// endpoints, typically with a per-client rate limiter.
func (h *Handler) RegisterPublicRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
	})
}

// RegisterProtectedRoutes registers routes for any authenticated caller.
// The router must already run the access guard.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.With(httputil.RequireRole(domain.RoleUser, domain.RoleAdmin)).Get("/auth/user", h.CurrentUser)
}

// RegisterAdminRoutes registers Admin-only routes. The router must already
// run the access guard and the Admin role check.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/auth/admin", h.CurrentAdmin)
	r.Get("/admin/users/{id}", h.GetUser)
	r.Patch("/admin/users/{id}", h.UpdateUserStatus)
}

// RegisterRequest represents registration request body.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	Image    string `json:"image" validate:"omitempty,url,max=2048"`
	Age      *int   `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender   string `json:"gender" validate:"omitempty,max=32"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, user)
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents login response.
type LoginResponse struct {
	Account   *domain.User `json:"account"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, LoginResponse{
		Account:   result.User,
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt,
	})
}

// CurrentUser handles GET /auth/user.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	h.respondIdentity(w, r)
}

// CurrentAdmin handles GET /auth/admin.
func (h *Handler) CurrentAdmin(w http.ResponseWriter, r *http.Request) {
	h.respondIdentity(w, r)
}

// GetUser handles GET /admin/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// UpdateStatusRequest represents the admin status update body.
type UpdateStatusRequest struct {
	IsActive  *bool `json:"is_active"`
	IsDeleted *bool `json:"is_deleted"`
}

// UpdateUserStatus handles PATCH /admin/users/{id}.
func (h *Handler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.SetUserStatus(r.Context(), chi.URLParam(r, "id"), StatusUpdate(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

func (h *Handler) respondIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IdentityFromContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	httputil.Success(w, http.StatusOK, id)
}

// decode reads a JSON body into dst and validates it, writing a 400 and
// returning false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
