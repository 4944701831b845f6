package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tourhive/internal/config"
	"tourhive/internal/pkg/metrics"

	"gopkg.in/gomail.v2"
)

// EmailSender 通过 SMTP 实现 Mailer。
type EmailSender struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailSender 创建一个新的邮件发送器。
func NewEmailSender(cfg *config.EmailConfig, logger *slog.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		logger: logger,
	}
}

// Send 发送邮件，受 ctx 约束。
//
// gomail 的 DialAndSend 本身不接受 ctx，这里放到 goroutine 里跑，
// ctx 超时/取消时立刻向调用方返回错误——调用方（密码重置）依赖
// 这个失败信号来回滚已写入的重置状态。
func (n *EmailSender) Send(ctx context.Context, to string, subject string, body string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			metrics.EmailSendTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("send email: %w", err)
		}
		metrics.EmailSendTotal.WithLabelValues("ok").Inc()
		n.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
		return nil
	case <-ctx.Done():
		metrics.EmailSendTotal.WithLabelValues("timeout").Inc()
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}
