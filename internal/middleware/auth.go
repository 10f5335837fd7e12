package middleware

import (
	"errors"
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/auth"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Claves del contexto de gin
const (
	TenantKey        = "tenant"
	UserAccountIDKey = "userAccountId"
	rotatedFamilyKey = "rotatedFamily"
	apiKeyHeader     = "X-API-Key"
)

var (
	authService  *auth.Service
	userRepo     *repository.UserRepository
	emailService *services.EmailService
)

func InitAuth(svc *auth.Service, users *repository.UserRepository, emails *services.EmailService) {
	authService = svc
	userRepo = users
	emailService = emails
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func setTenant(c *gin.Context, tenant *models.Tenant) {
	c.Set(TenantKey, tenant)
	if tenant.UserAccountID != "" {
		c.Set(UserAccountIDKey, tenant.UserAccountID)
	}
}

// authorizeCookies valida las cookies de sesión y reescribe ambas si hubo rotación.
func authorizeCookies(c *gin.Context) bool {
	access, _ := c.Cookie(auth.AccessCookie)
	refresh, _ := c.Cookie(auth.RefreshCookie)
	if access == "" && refresh == "" {
		unauthorized(c, "Unauthorized")
		return false
	}

	tenant, sess, err := authService.AuthorizeUser(c.Request.Context(), access, refresh, c.Request.UserAgent())
	if err != nil {
		authService.ClearCookies(c)
		if !errors.Is(err, auth.ErrUnauthorized) {
			zap.L().Error("error al validar la sesión", zap.Error(err))
		}
		unauthorized(c, "Invalid authentication")
		return false
	}
	if sess != nil {
		authService.SetSessionCookies(c, sess)
		c.Set(rotatedFamilyKey, sess.FamilyID)
	}
	setTenant(c, tenant)
	return true
}

func authorizeAPIKey(c *gin.Context) bool {
	key := c.GetHeader(apiKeyHeader)
	if key == "" {
		unauthorized(c, "Unauthorized")
		return false
	}
	tenant, err := authService.AuthorizeAPIKey(c.Request.Context(), key)
	if err != nil {
		unauthorized(c, "Invalid authentication")
		return false
	}
	setTenant(c, tenant)
	return true
}

// RequireUser exige una sesión de usuario (cookies aat/art).
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authorizeCookies(c) {
			c.Next()
		}
	}
}

// RequireAPIKey exige la cabecera X-API-Key.
func RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authorizeAPIKey(c) {
			c.Next()
		}
	}
}

// RequireAny acepta una clave de API o una sesión de usuario.
func RequireAny() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok := false
		if c.GetHeader(apiKeyHeader) != "" {
			ok = authorizeAPIKey(c)
		} else {
			ok = authorizeCookies(c)
		}
		if ok {
			c.Next()
		}
	}
}

// currentAccount devuelve la cuenta de la sesión; vacío para claves de API.
func currentAccount(c *gin.Context) string {
	return c.GetString(UserAccountIDKey)
}

func Login(c *gin.Context) {
	var login struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&login); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := userRepo.GetAccountByEmail(c.Request.Context(), login.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		internalError(c, "Error logging in", err)
		return
	}
	if err := auth.CheckPassword(account.PasswordHash, login.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	startSession(c, account.CoreUserID, account.ID, http.StatusOK)
}

// startSession emite la familia nueva, escribe las cookies y responde con el SessionUser.
func startSession(c *gin.Context, tenantID, accountID string, status int) {
	sess, err := authService.IssueSession(c.Request.Context(), tenantID, accountID, c.Request.UserAgent())
	if err != nil {
		internalError(c, "Error creating session", err)
		return
	}
	user, err := userRepo.SessionUser(c.Request.Context(), accountID)
	if err != nil {
		internalError(c, "Error loading user", err)
		return
	}
	authService.SetSessionCookies(c, sess)
	c.JSON(status, user)
}

func Register(c *gin.Context) {
	var req struct {
		Email       string  `json:"email" binding:"required,email"`
		Password    string  `json:"password" binding:"required,min=8"`
		FullName    string  `json:"fullName" binding:"required"`
		PhoneNumber *string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, "Error processing password", err)
		return
	}
	user, err := userRepo.Register(c.Request.Context(), &models.UserAccount{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		PhoneNumber:  req.PhoneNumber,
	})
	if errors.Is(err, repository.ErrConflict) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	}
	if err != nil {
		internalError(c, "Error creating user", err)
		return
	}

	if err := issueEmailVerification(c, user.Account.ID, user.Account.Email, false); err != nil {
		zap.L().Warn("no se pudo emitir la verificación de email", zap.String("userAccountId", user.Account.ID), zap.Error(err))
	}
	startSession(c, user.ID, user.Account.ID, http.StatusCreated)
}

func Logout(c *gin.Context) {
	// si RequireUser acaba de rotar, la familia viva es la nueva
	var families []string
	if rotated := c.GetString(rotatedFamilyKey); rotated != "" {
		families = append(families, rotated)
	}
	if refresh, err := c.Cookie(auth.RefreshCookie); err == nil {
		if familyID, ok := authService.FamilyFromRefreshToken(refresh); ok {
			families = append(families, familyID)
		}
	}
	for _, familyID := range families {
		if err := authService.RevokeFamily(c.Request.Context(), currentAccount(c), familyID); err != nil {
			zap.L().Warn("no se pudo revocar la familia", zap.Error(err))
		}
	}
	authService.ClearCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func Me(c *gin.Context) {
	user, err := userRepo.SessionUser(c.Request.Context(), currentAccount(c))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User account not found"})
		return
	}
	if err != nil {
		internalError(c, "Error loading user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func RevokeFamily(c *gin.Context) {
	var req struct {
		FamilyID string `json:"familyId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := authService.RevokeFamily(c.Request.Context(), currentAccount(c), req.FamilyID); err != nil {
		internalError(c, "Error revoking session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
