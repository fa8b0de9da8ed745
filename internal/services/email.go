package services

import (
	"accountsvc/internal/config"
	"accountsvc/internal/logger"
	"accountsvc/internal/utils/helpers"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"go.uber.org/zap"
)

const otpSubject = "Password reset code"

const defaultSMTPTimeout = 15 * time.Second

type EmailService struct {
	auth    smtp.Auth
	from    string
	host    string
	port    string
	otpTTL  time.Duration
	timeout time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewEmailService(cfg *config.Config) *EmailService {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	timeout := cfg.SMTPTimeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	return &EmailService{
		auth:    auth,
		from:    cfg.MailFrom,
		host:    cfg.SMTPHost,
		port:    cfg.SMTPPort,
		otpTTL:  cfg.OTPTTL,
		timeout: timeout,
		dial:    (&net.Dialer{}).DialContext,
	}
}

// Send проходит весь SMTP-диалог под одним дедлайном: зависший сервер не держит запрос дольше timeout.
func (s *EmailService) Send(ctx context.Context, to []string, subject, body string) error {
	msg := []byte("From: " + s.from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n\r\n" +
		body)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.dial(ctx, "tcp", net.JoinHostPort(s.host, s.port))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("smtp deadline: %w", err)
	}
	// отмена запроса обрывает ожидание ответа сервера
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data end: %w", err)
	}
	return c.Quit()
}

// SendOTP отправляет одноразовый код письмом.
func (s *EmailService) SendOTP(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Send(ctx, []string{to}, otpSubject, helpers.BuildOTPHTML(code, s.otpTTL)); err != nil {
		logger.Log.Error("Ошибка отправки письма с кодом", zap.String("email", to), zap.Error(err))
		return err
	}
	logger.Log.Info("Письмо с кодом отправлено", zap.String("email", to))
	return nil
}

// LogDeliverer используется, когда SMTP не настроен: код попадает только в лог.
type LogDeliverer struct{}

func (LogDeliverer) SendOTP(_ context.Context, to, code string) error {
	logger.Log.Warn("SMTP не настроен, код сброса выведен в лог", zap.String("email", to), zap.String("otp", code))
	return nil
}
