package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/auth"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	emailTokenBytes = 32
	emailTokenTTL   = 24 * time.Hour
	phoneTokenBytes = 6
	phoneTokenTTL   = 10 * time.Minute
)

// issueEmailVerification genera el token de email y lo envía.
func issueEmailVerification(c *gin.Context, accountID, email string, supersede bool) error {
	token, err := auth.RandomHex(emailTokenBytes)
	if err != nil {
		return err
	}
	if _, err := userRepo.CreateVerification(c.Request.Context(), repository.EmailVerification, accountID, token, time.Now().Add(emailTokenTTL), supersede); err != nil {
		return err
	}
	return emailService.SendVerificationEmail(email, token)
}

// issuePhoneVerification genera el código de teléfono. No hay pasarela SMS: el código queda en el log.
func issuePhoneVerification(c *gin.Context, accountID string) error {
	token, err := auth.RandomHex(phoneTokenBytes)
	if err != nil {
		return err
	}
	token = strings.ToUpper(token)
	if _, err := userRepo.CreateVerification(c.Request.Context(), repository.PhoneVerification, accountID, token, time.Now().Add(phoneTokenTTL), true); err != nil {
		return err
	}
	zap.L().Debug("código de verificación de teléfono", zap.String("userAccountId", accountID), zap.String("token", token))
	return nil
}

// checkLatestVerification compara el token con el último emitido para la cuenta.
func checkLatestVerification(c *gin.Context, kind repository.VerificationKind, token string) (bool, error) {
	ctx := c.Request.Context()
	v, err := userRepo.LatestVerification(ctx, kind, currentAccount(c))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if v.Token != token || !v.Usable(time.Now()) {
		return false, nil
	}
	if err := userRepo.CompleteVerification(ctx, kind, v); err != nil {
		return false, err
	}
	return true, nil
}

func verifyLatest(c *gin.Context, kind repository.VerificationKind, message string) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	ok, err := checkLatestVerification(c, kind, req.Token)
	if err != nil {
		internalError(c, "Internal server error", err)
		return
	}
	if !ok {
		badRequest(c, "Invalid or expired verification token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func VerifyEmail(c *gin.Context) {
	verifyLatest(c, repository.EmailVerification, "Email verified successfully")
}

func VerifyPhone(c *gin.Context) {
	verifyLatest(c, repository.PhoneVerification, "Phone number verified successfully")
}

func ResendEmailVerification(c *gin.Context) {
	account, ok := sessionAccount(c)
	if !ok {
		return
	}
	if err := issueEmailVerification(c, account.ID, account.Email, true); err != nil {
		internalError(c, "Internal server error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verification token sent successfully"})
}

func ResendPhoneVerification(c *gin.Context) {
	account, ok := sessionAccount(c)
	if !ok {
		return
	}
	if account.PhoneNumber == nil || *account.PhoneNumber == "" {
		badRequest(c, "No phone number on this account")
		return
	}
	if err := issuePhoneVerification(c, account.ID); err != nil {
		internalError(c, "Internal server error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Phone verification token sent successfully"})
}

// VerifyEmailToken canjea un token de email buscándolo por su valor (/api/users/verify-email).
func VerifyEmailToken(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Token == "" {
		badRequest(c, "Verification token is required")
		return
	}

	ctx := c.Request.Context()
	v, err := userRepo.FindVerificationByToken(ctx, repository.EmailVerification, req.Token)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && (v.UserAccountID != currentAccount(c) || !v.Usable(time.Now()))) {
		badRequest(c, "Invalid or expired verification token")
		return
	}
	if err != nil {
		internalError(c, "Error verifying email", err)
		return
	}
	if err := userRepo.CompleteVerification(ctx, repository.EmailVerification, v); err != nil {
		internalError(c, "Error verifying email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
