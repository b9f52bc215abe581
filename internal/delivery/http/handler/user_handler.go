package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"storefront-identity/internal/email"
	"storefront-identity/internal/logger"
	"storefront-identity/internal/middleware"
	"storefront-identity/internal/usecase/user"
	appErrors "storefront-identity/pkg/errors"
	"storefront-identity/pkg/utils"
)

type UserHandler struct {
	service *user.Service
}

func NewUserHandler(service *user.Service) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/verify-otp", h.VerifyOTP)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/reset-password/:token", h.ResetPassword)
	}
}

func (h *UserHandler) RegisterProfileRoutes(router *gin.RouterGroup) {
	profile := router.Group("/auth/profile")
	{
		profile.GET("", h.GetProfile)
		profile.PUT("", h.UpdateProfile)
	}
}

func (h *UserHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	admin := router.Group("")
	{
		admin.GET("/users", h.GetAllUsers)
		admin.DELETE("/users/:user_id", h.DeleteUser)
	}
}

// bindJSON decodes the body into req, answering 413 when the size cap
// trips mid-read and 400 for anything else malformed.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
	return false
}

func (h *UserHandler) Register(c *gin.Context) {
	var req user.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.IssueOTP(c.Request.Context(), &req); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "OTP sent to email", nil)
}

func (h *UserHandler) VerifyOTP(c *gin.Context) {
	var req user.VerifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	authResponse, err := h.service.RedeemOTP(c.Request.Context(), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "User registered successfully", authResponse)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	authResponse, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Login successful", authResponse)
}

func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req user.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.RequestReset(c.Request.Context(), &req); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reset email sent", nil)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req user.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Token = c.Param("token")

	if err := h.service.RedeemReset(c.Request.Context(), &req); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Password reset successful", nil)
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), identity.UserID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile updated successfully", profile)
}

func (h *UserHandler) GetAllUsers(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), identity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Users retrieved successfully", users)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), identity, userID); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "User deleted successfully", nil)
}

func respondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var appErr *appErrors.AppError
	var deliveryErr *email.DeliveryError

	switch {
	case errors.As(err, &appErr) && errors.Is(err, appErrors.ErrValidationFailed):
		utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
	case errors.Is(err, appErrors.ErrAlreadyRegistered),
		errors.Is(err, appErrors.ErrInvalidOrExpiredOTP),
		errors.Is(err, appErrors.ErrInvalidOrExpiredToken),
		errors.Is(err, appErrors.ErrSelfDeletionForbidden):
		utils.ErrorResponse(c, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, appErrors.ErrInvalidCredentials),
		errors.Is(err, appErrors.ErrUnauthenticated):
		utils.ErrorResponse(c, http.StatusUnauthorized, rootMessage(err))
	case errors.Is(err, appErrors.ErrForbidden):
		utils.ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, appErrors.ErrUserNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErrors.ErrDuplicateKey):
		utils.ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErrors.ErrTooManyRequests):
		utils.ErrorResponse(c, http.StatusTooManyRequests, appErrors.ErrTooManyRequests.Error())
	case errors.As(err, &deliveryErr):
		status := http.StatusBadGateway
		if deliveryErr.Reason == email.ReasonConnection {
			status = http.StatusServiceUnavailable
		}
		utils.ErrorResponse(c, status, deliveryErr.Message())
	default:
		requestID := middleware.GetRequestID(c)
		logger.Error("Internal server error",
			zap.String("request_id", requestID),
			zap.String("route", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// rootMessage hides wrapped detail such as token parse errors from clients.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		appErrors.ErrAlreadyRegistered,
		appErrors.ErrInvalidOrExpiredOTP,
		appErrors.ErrInvalidOrExpiredToken,
		appErrors.ErrSelfDeletionForbidden,
		appErrors.ErrInvalidCredentials,
		appErrors.ErrUnauthenticated,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
