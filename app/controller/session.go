package controller

import (
	"errors"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-accounts/app/dto/http"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type SessionController struct {
	sessions service.SessionService
	cookie   config.CookieConfig
	secure   bool
}

func NewSessionController(sessions service.SessionService, cfg *config.Config) *SessionController {
	return &SessionController{
		sessions: sessions,
		cookie:   cfg.Cookie,
		secure:   cfg.IsProduction(),
	}
}

func (c *SessionController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	result, err := c.sessions.Register(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("email", req.Email), "Register")
	}

	logrus.WithField("email", req.Email).Info("Account registered")
	return ctx.JSON(http.StatusCreated, result)
}

func (c *SessionController) Confirm(ctx echo.Context) error {
	req, err := types.NewConfirmRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind confirm request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Confirm validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.Confirm(ctx.Request().Context(), req, c.carrier(ctx))
	if err != nil {
		return c.fail(ctx, err, logrus.NewEntry(logrus.StandardLogger()), "Confirm")
	}

	logrus.WithField("account_id", result.Account.ID).Info("Account confirmed")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) ResendConfirmation(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind resend confirmation request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Resend confirmation validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.ResendConfirmation(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("email", req.Email), "Resend confirmation")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	result, err := c.sessions.Login(ctx.Request().Context(), req, c.carrier(ctx))
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("email", req.Email), "Login")
	}

	logrus.WithFields(logrus.Fields{
		"email":              req.Email,
		"two_factor_pending": result.TwoFactorPending,
	}).Info("Login successful")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) ConfirmLogin(ctx echo.Context) error {
	req, err := types.NewConfirmLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind confirm login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Confirm login validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.ConfirmLogin(ctx.Request().Context(), req, c.carrier(ctx))
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("email", req.Email), "Confirm login")
	}

	logrus.WithField("account_id", result.Account.ID).Info("Two-factor login confirmed")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) Refresh(ctx echo.Context) error {
	carrier := c.carrier(ctx)

	result, err := c.sessions.RefreshAccess(ctx.Request().Context(), carrier.read(), carrier)
	if err != nil {
		return c.fail(ctx, err, logrus.NewEntry(logrus.StandardLogger()), "Refresh")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) RequestPasswordReset(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind password reset request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Password reset request validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.RequestPasswordReset(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("email", req.Email), "Password reset request")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.ResetPassword(ctx.Request().Context(), req)
	if err != nil {
		return c.fail(ctx, err, logrus.NewEntry(logrus.StandardLogger()), "Reset password")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) Logout(ctx echo.Context) error {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		logrus.Warn("Logout failed: missing account_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	logrus.WithField("account_id", accountID).Info("Logout request received")
	return ctx.JSON(http.StatusOK, c.sessions.Logout(c.carrier(ctx)))
}

func (c *SessionController) ChangePassword(ctx echo.Context) error {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := types.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("account_id", accountID).Debug("Change password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.ChangePassword(ctx.Request().Context(), accountID, req, c.carrier(ctx))
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("account_id", accountID), "Change password")
	}

	logrus.WithField("account_id", accountID).Info("Password changed")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) ChangeEmail(ctx echo.Context) error {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := types.NewChangeEmailRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change email request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		logrus.WithField("account_id", accountID).Debug("Change email validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.ChangeEmail(ctx.Request().Context(), accountID, req, c.carrier(ctx))
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("account_id", accountID), "Change email")
	}

	logrus.WithField("account_id", accountID).Info("Email changed")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) SetTwoFactor(ctx echo.Context) error {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := types.NewSetTwoFactorRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind two-factor request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.SetTwoFactor(ctx.Request().Context(), accountID, req)
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("account_id", accountID), "Set two-factor")
	}

	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"enabled":    result.TwoFactorEnabled,
	}).Info("Two-factor setting updated")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) Me(ctx echo.Context) error {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	result, err := c.sessions.Me(ctx.Request().Context(), accountID)
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("account_id", accountID), "Me")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) DeleteAccount(ctx echo.Context) error {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := types.NewDeleteAccountRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind delete account request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.sessions.DeleteAccount(ctx.Request().Context(), accountID, req, c.carrier(ctx))
	if err != nil {
		return c.fail(ctx, err, logrus.WithField("account_id", accountID), "Delete account")
	}

	logrus.WithField("account_id", accountID).Info("Account deleted")
	return ctx.JSON(http.StatusOK, result)
}

func (c *SessionController) carrier(ctx echo.Context) *refreshCookie {
	return &refreshCookie{ctx: ctx, cfg: c.cookie, secure: c.secure}
}

// fail maps service errors to a status code. Expected failures are logged at
// warn, anything else at error with a generic body.
func (c *SessionController) fail(ctx echo.Context, err error, entry *logrus.Entry, op string) error {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		entry.WithError(err).Error(op + " failed")
	} else {
		entry.WithField("reason", message).Warn(op + " failed")
	}
	return ctx.JSON(status, httpdto.ErrorResponse{Error: message})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrAccountNotConfirmed):
		return http.StatusForbidden, "account not confirmed"
	case errors.Is(err, service.ErrAccountAlreadyConfirmed):
		return http.StatusBadRequest, "account is already confirmed"
	case errors.Is(err, service.ErrEmailInUse):
		return http.StatusConflict, "email already in use"
	case errors.Is(err, service.ErrVersionConflict):
		return http.StatusConflict, "account was modified, please retry"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusBadRequest, "invalid token"
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusBadRequest, "invalid code"
	case errors.Is(err, service.ErrChallengeExpired):
		return http.StatusBadRequest, "code has expired"
	case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrPasswordsMismatch):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func accountIDFromContext(ctx echo.Context) (uint64, bool) {
	accountID, ok := ctx.Get(middleware.AccountIDKey).(uint64)
	return accountID, ok && accountID != 0
}
