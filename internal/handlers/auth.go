package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Auth *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// RegisterRequest represents the request body for patient self-registration.
type RegisterRequest struct {
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	PhoneNumber string `json:"phoneNumber" binding:"omitempty,max=30"`
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "User registered successfully, check your email to verify the address", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for a successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	pair, user, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates the refresh token and issues a new pair.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Tokens refreshed successfully", pair)
}

// Logout revokes the given refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Logged out successfully", nil)
}

// VerifyEmail confirms an address from the emailed link.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, err := h.Auth.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Email verified successfully", user.Sanitize())
}

// OTPRequest asks for a one-time code.
type OTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestOTP mails a one-time code. The answer is the same whether or not the address
// has an account.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req OTPRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.Auth.RequestOTP(c.Request.Context(), req.Email); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "If the address has an account, a code has been sent", nil)
}

// VerifyOTPRequest submits a one-time code.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// VerifyOTP checks a one-time code and logs the user in.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	pair, user, err := h.Auth.VerifyOTP(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Code verified successfully", LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.Sanitize(),
	})
}

// GetProfile returns the authenticated user's account.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	user, err := h.Auth.Profile(c.Request.Context(), actor.UserID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating the own account.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName    *string `json:"lastName" binding:"omitempty,min=1,max=100"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=30"`
}

func (r UpdateProfileRequest) toUpdate() services.ProfileUpdate {
	return services.ProfileUpdate{FirstName: r.FirstName, LastName: r.LastName, PhoneNumber: r.PhoneNumber}
}

// UpdateProfile changes the authenticated user's account.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, err := h.Auth.UpdateProfile(c.Request.Context(), actor.UserID, req.toUpdate())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}
