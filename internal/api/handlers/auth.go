package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/go-marks/internal/api/dto"
	"github.com/hugh/go-marks/internal/api/middleware"
	"github.com/hugh/go-marks/internal/apperr"
	"github.com/hugh/go-marks/internal/auth"
	"github.com/hugh/go-marks/internal/database/models"
)

type AuthHandler struct {
	authService auth.Authenticator
	tokens      auth.TokenService
	logger      *slog.Logger
	secure      bool
}

func NewAuthHandler(authService auth.Authenticator, tokens auth.TokenService, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokens:      tokens,
		logger:      logger,
		secure:      secureCookies,
	}
}

func toUserDTO(u *models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, h.logger, apperr.Conflict("User already exists"))
			return
		}
		writeError(w, h.logger, err)
		return
	}

	h.setTokenCookie(w, resp.Token)

	out := dto.AuthResponse{Token: resp.Token, User: toUserDTO(resp.User)}
	if resp.Company != nil {
		c := toCompanyDTO(*resp.Company, &resp.Company.ID)
		out.Company = &c
		out.User.ActiveCompanyID = idString(&resp.Company.ID)
		h.setActiveCompanyCookie(w, resp.Company.ID.String())
	}

	writeJSON(w, http.StatusCreated, out)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeError(w, h.logger, apperr.ValidationFailed(errs))
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
			return
		}
		writeError(w, h.logger, err)
		return
	}

	h.setTokenCookie(w, resp.Token)

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  toUserDTO(resp.User),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{middleware.TokenCookie, middleware.ActiveCompanyCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Me returns the caller and the company the request resolved to.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, err := requestScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), s.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, h.logger, apperr.NotFound("User"))
			return
		}
		writeError(w, h.logger, err)
		return
	}

	out := toUserDTO(user)
	out.ActiveCompanyID = idString(s.CompanyID)
	writeJSON(w, http.StatusOK, out)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.tokens.Expiry().Seconds()),
	})
}

func (h *AuthHandler) setActiveCompanyCookie(w http.ResponseWriter, companyID string) {
	setActiveCompanyCookie(w, companyID, h.secure)
}

func setActiveCompanyCookie(w http.ResponseWriter, companyID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ActiveCompanyCookie,
		Value:    companyID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   365 * 24 * 60 * 60,
	})
}
