package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shailendra378/tradingqueen/internal/auth"
	apperrors "github.com/shailendra378/tradingqueen/internal/errors"
	"github.com/shailendra378/tradingqueen/internal/model"
	"github.com/shailendra378/tradingqueen/internal/service"
)

// ClaimsContextKey is where the bearer-token middleware stores *auth.Claims.
const ClaimsContextKey = "claims"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignupRequest represents a user registration request.
type SignupRequest struct {
	Name     string `json:"name" example:"Jane Doe"`
	Email    string `json:"email" example:"jane@x.com"`
	Password string `json:"password" example:"secret1"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" example:"jane@x.com"`
	Password string `json:"password" example:"secret1"`
}

// UpdateProfileRequest carries the profile fields to change. Omitted fields
// keep their stored values.
type UpdateProfileRequest struct {
	Name                 *string `json:"name,omitempty" validate:"omitempty,max=255" example:"Jane Smith"`
	InvestmentExperience *string `json:"investmentExperience,omitempty" validate:"omitempty,max=50" example:"intermediate"`
	RiskTolerance        *string `json:"riskTolerance,omitempty" validate:"omitempty,max=50" example:"aggressive"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	Message string            `json:"message"`
	User    *model.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

// ProfileResponse wraps the caller's public record.
type ProfileResponse struct {
	Message string            `json:"message,omitempty"`
	User    *model.PublicUser `json:"user"`
}

// MessageResponse is a bare confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenUser is the identity embedded in a token.
type TokenUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// VerifyResponse reports a valid token and who it belongs to.
type VerifyResponse struct {
	Valid bool      `json:"valid"`
	User  TokenUser `json:"user"`
}

// Signup godoc
// @Summary Register a new user
// @Description Creates an account with the default investor profile and returns a 24h token. Limited to 5 attempts per 15 minutes per client.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.authService.Signup(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, AuthResponse{
		Message: "user registered successfully",
		User:    res.User,
		Token:   res.Token,
	})
}

// Login godoc
// @Summary Login user
// @Description Limited to 5 attempts per 15 minutes per client.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Message: "login successful",
		User:    res.User,
		Token:   res.Token,
	})
}

// GetProfile godoc
// @Summary Get the caller's profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/profile [get]
func (h *AuthHandler) GetProfile(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	user, err := h.authService.GetProfile(c.Request().Context(), claims)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProfileResponse{User: user})
}

// UpdateProfile godoc
// @Summary Update the caller's profile
// @Description Only the fields present in the body are changed.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(c.Request().Context(), claims, service.ProfileUpdate{
		Name:                 req.Name,
		InvestmentExperience: req.InvestmentExperience,
		RiskTolerance:        req.RiskTolerance,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ProfileResponse{
		Message: "profile updated successfully",
		User:    user,
	})
}

// Logout godoc
// @Summary Logout user
// @Description Records the logout time. The token remains valid until it expires unless revocation is enabled.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), claims); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "logout successful"})
}

// Verify godoc
// @Summary Verify a token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} VerifyResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /auth/verify [get]
func (h *AuthHandler) Verify(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, VerifyResponse{
		Valid: true,
		User: TokenUser{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
		},
	})
}

func claimsFrom(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(ClaimsContextKey).(*auth.Claims)
	if !ok || claims == nil {
		return nil, apperrors.New(apperrors.ErrUnauthorized, service.MsgTokenRequired)
	}
	return claims, nil
}
