package services

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/config"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService arma los correos en markdown y los envía como HTML.
type EmailService struct {
	cfg      config.SMTPConfig
	sendMail sendMailFunc
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *EmailService) SendVerificationEmail(email, token string) error {
	body := fmt.Sprintf(`## Confirm your email

Thanks for signing up. Use this code to verify your email address:

**%s**

The code expires in 24 hours.
`, token)
	return s.send(email, "Verify your email", body, token)
}

func (s *EmailService) SendPasswordResetEmail(email, token string) error {
	body := fmt.Sprintf(`## Password reset

You asked to reset your password. Use the following token:

**%s**

The token expires in one hour. If you did not ask for this change you can ignore this email.
`, token)
	return s.send(email, "Password reset", body, token)
}

func (s *EmailService) SendMilestoneReachedEmail(email, milestone string, target, current decimal.Decimal, currency string) error {
	body := fmt.Sprintf(`## Milestone reached 🎉

Your portfolio reached **%s**.

- Target: %s
- Current value: %s
`, milestone, FormatMoney(target, currency), FormatMoney(current, currency))
	return s.send(email, "Milestone reached: "+milestone, body, "")
}

// send convierte el markdown a HTML. Sin SMTP configurado el correo solo se registra en el log.
func (s *EmailService) send(email, subject, markdown, token string) error {
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &html); err != nil {
		return fmt.Errorf("rendering email: %w", err)
	}

	if !s.cfg.Configured() {
		zap.L().Info("SMTP no configurado, correo enviado al log",
			zap.String("to", email),
			zap.String("subject", subject),
		)
		if token != "" {
			zap.L().Debug("token del correo", zap.String("to", email), zap.String("token", token))
		}
		return nil
	}

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", s.cfg.From, email, subject, html.String())

	if err := s.sendMail(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.From, []string{email}, []byte(message)); err != nil {
		zap.L().Error("error al enviar email", zap.String("to", email), zap.Error(err))
		return err
	}
	return nil
}
