package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/auth"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	resetTokenBytes = 32
	resetTokenTTL   = time.Hour
)

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
}

// sessionAccount carga la cuenta de la sesión actual.
func sessionAccount(c *gin.Context) (*models.UserAccount, bool) {
	account, err := userRepo.GetAccount(c.Request.Context(), currentAccount(c))
	if err != nil {
		respondError(c, err, "User account not found", "Error loading user account")
		return nil, false
	}
	return account, true
}

// Core users

func CreateCoreUser(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Status != "" && !validUserStatus(req.Status) {
		badRequest(c, "Invalid status")
		return
	}
	u := &models.CoreUser{Status: req.Status}
	if err := userRepo.CreateCoreUser(c.Request.Context(), u); err != nil {
		internalError(c, "Error creating user", err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func validUserStatus(s string) bool {
	return s == models.UserStatusActive || s == models.UserStatusInactive || s == models.UserStatusSuspended
}

// ownCoreUser solo deja pasar el usuario base de la sesión.
func ownCoreUser(c *gin.Context) bool {
	account, ok := sessionAccount(c)
	if !ok {
		return false
	}
	if account.CoreUserID != c.Param("id") {
		forbidden(c)
		return false
	}
	return true
}

func GetCoreUser(c *gin.Context) {
	if !ownCoreUser(c) {
		return
	}
	u, err := userRepo.GetCoreUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "User not found", "Error loading user")
		return
	}
	c.JSON(http.StatusOK, u)
}

func UpdateCoreUser(c *gin.Context) {
	if !ownCoreUser(c) {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !validUserStatus(req.Status) {
		badRequest(c, "Invalid status")
		return
	}
	u, err := userRepo.UpdateCoreUserStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, "User not found", "Error updating user")
		return
	}
	c.JSON(http.StatusOK, u)
}

func DeleteCoreUser(c *gin.Context) {
	if !ownCoreUser(c) {
		return
	}
	if err := userRepo.DeleteCoreUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "User not found", "Error deleting user")
		return
	}
	authService.ClearCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Accounts

func CreateAccount(c *gin.Context) {
	var req struct {
		CoreUserID  string  `json:"coreUserId" binding:"required"`
		Email       string  `json:"email" binding:"required,email"`
		Password    string  `json:"password" binding:"required,min=8"`
		FullName    string  `json:"fullName" binding:"required"`
		PhoneNumber *string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	// solo se agregan cuentas al usuario base de la sesión
	session, ok := sessionAccount(c)
	if !ok {
		return
	}
	if req.CoreUserID != session.CoreUserID {
		forbidden(c)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, "Error processing password", err)
		return
	}
	account := &models.UserAccount{
		CoreUserID:   req.CoreUserID,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		PhoneNumber:  req.PhoneNumber,
	}
	if err := userRepo.CreateAccount(c.Request.Context(), account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			badRequest(c, "Email already registered")
			return
		}
		internalError(c, "Error creating user account", err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func GetAccount(c *gin.Context) {
	if c.Param("id") != currentAccount(c) {
		forbidden(c)
		return
	}
	account, ok := sessionAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, account)
}

func UpdateAccount(c *gin.Context) {
	if c.Param("id") != currentAccount(c) {
		forbidden(c)
		return
	}
	var req struct {
		Email       *string `json:"email" binding:"omitempty,email"`
		FullName    *string `json:"fullName"`
		PhoneNumber *string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	account, ok := sessionAccount(c)
	if !ok {
		return
	}

	// Cambiar email o teléfono obliga a verificarlos de nuevo
	if req.Email != nil && !strings.EqualFold(*req.Email, account.Email) {
		account.Email = *req.Email
		account.IsEmailVerified = false
	}
	if req.PhoneNumber != nil && (account.PhoneNumber == nil || *account.PhoneNumber != *req.PhoneNumber) {
		account.PhoneNumber = req.PhoneNumber
		account.IsPhoneVerified = false
	}
	if req.FullName != nil {
		account.FullName = *req.FullName
	}

	if err := userRepo.UpdateAccount(c.Request.Context(), account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			badRequest(c, "Email already registered")
			return
		}
		respondError(c, err, "User account not found", "Error updating user account")
		return
	}
	c.JSON(http.StatusOK, account)
}

func DeleteAccount(c *gin.Context) {
	if c.Param("id") != currentAccount(c) {
		forbidden(c)
		return
	}
	if err := userRepo.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "User account not found", "Error deleting user account")
		return
	}
	authService.ClearCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Profiles

func CreateProfile(c *gin.Context) {
	var req struct {
		AvatarURL *string `json:"avatarUrl" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p := &models.UserProfile{UserAccountID: currentAccount(c), AvatarURL: req.AvatarURL}
	if err := userRepo.CreateProfile(c.Request.Context(), p); err != nil {
		internalError(c, "Error creating profile", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ownProfile carga el perfil y comprueba que sea de la sesión.
func ownProfile(c *gin.Context) (*models.UserProfile, bool) {
	p, err := userRepo.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Profile not found", "Error loading profile")
		return nil, false
	}
	if p.UserAccountID != currentAccount(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return nil, false
	}
	return p, true
}

func GetProfile(c *gin.Context) {
	p, ok := ownProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func UpdateProfile(c *gin.Context) {
	var req struct {
		AvatarURL *string `json:"avatarUrl" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, ok := ownProfile(c)
	if !ok {
		return
	}
	p.AvatarURL = req.AvatarURL
	if err := userRepo.UpdateProfile(c.Request.Context(), p); err != nil {
		respondError(c, err, "Profile not found", "Error updating profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

func DeleteProfile(c *gin.Context) {
	p, ok := ownProfile(c)
	if !ok {
		return
	}
	if err := userRepo.DeleteProfile(c.Request.Context(), p.ID); err != nil {
		respondError(c, err, "Profile not found", "Error deleting profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Contraseñas

func RequestResetPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	account, err := userRepo.GetAccountByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err, "User account not found", "Error loading user account")
		return
	}

	token, err := auth.RandomHex(resetTokenBytes)
	if err != nil {
		internalError(c, "Error generating token", err)
		return
	}
	if _, err := userRepo.CreateVerification(c.Request.Context(), repository.PasswordReset, account.ID, token, time.Now().Add(resetTokenTTL), true); err != nil {
		internalError(c, "Error generating token", err)
		return
	}
	if err := emailService.SendPasswordResetEmail(account.Email, token); err != nil {
		internalError(c, "Error sending email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	reset, err := userRepo.FindVerificationByToken(c.Request.Context(), repository.PasswordReset, req.Token)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !reset.Usable(time.Now())) {
		badRequest(c, "Invalid or expired reset token")
		return
	}
	if err != nil {
		internalError(c, "Error resetting password", err)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		internalError(c, "Error processing password", err)
		return
	}
	if err := userRepo.ResetPassword(c.Request.Context(), reset.ID, reset.UserAccountID, hash); err != nil {
		respondError(c, err, "User account not found", "Error resetting password")
		return
	}
	zap.L().Info("contraseña restablecida", zap.String("userAccountId", reset.UserAccountID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func ChangePassword(c *gin.Context) {
	var req struct {
		UserAccountID   string `json:"userAccountId" binding:"required"`
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.UserAccountID != currentAccount(c) {
		forbidden(c)
		return
	}

	account, ok := sessionAccount(c)
	if !ok {
		return
	}
	if err := auth.CheckPassword(account.PasswordHash, req.CurrentPassword); err != nil {
		badRequest(c, "Current password is incorrect")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		internalError(c, "Error processing password", err)
		return
	}
	if err := userRepo.ChangePassword(c.Request.Context(), account.ID, hash); err != nil {
		respondError(c, err, "User account not found", "Error changing password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
