package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Nombres de las cookies de sesión
const (
	AccessCookie  = "aat"
	RefreshCookie = "art"
)

// SetSessionCookies escribe ambas cookies con la duración del refresh token.
func (s *Service) SetSessionCookies(c *gin.Context, sess *Session) {
	maxAge := int(s.opts.RefreshExpiry.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, sess.AccessToken, maxAge, "/", s.opts.CookieDomain, s.opts.Secure, true)
	c.SetCookie(RefreshCookie, sess.RefreshToken, maxAge, "/", s.opts.CookieDomain, s.opts.Secure, true)
}

func (s *Service) ClearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessCookie, "", -1, "/", s.opts.CookieDomain, s.opts.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", s.opts.CookieDomain, s.opts.Secure, true)
}
