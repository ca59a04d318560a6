// Package mailer 实现事务性邮件发送（注册验证码、工单回复通知）
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"pairshot/pkg/logging"
)

// Mailer 邮件发送接口
type Mailer interface {
	// SendVerificationCode 发送注册/改密验证码
	SendVerificationCode(ctx context.Context, to, code string) error

	// SendSupportReply 发送工单处理结果通知
	SendSupportReply(ctx context.Context, to, category, response string) error
}

// ============================================================================
// ResendMailer - Resend 实现
// ============================================================================

// ResendMailer 基于 Resend API 的实现
type ResendMailer struct {
	client *resend.Client
	from   string
	logger *logging.Logger
}

// NewResendMailer 创建 Resend 发信器
func NewResendMailer(apiKey, from string, logger *logging.Logger) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

// SendVerificationCode 发送验证码邮件
func (m *ResendMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: "Your verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
	}
	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("mailer: send verification code: %w", err)
	}
	m.logger.Info("verification email sent", "to", to, "email_id", sent.Id)
	return nil
}

// SendSupportReply 发送工单回复邮件
func (m *ResendMailer) SendSupportReply(ctx context.Context, to, category, response string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Update on your %s support request", category),
		Text:    response,
	}
	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("mailer: send support reply: %w", err)
	}
	m.logger.Info("support reply email sent", "to", to, "email_id", sent.Id)
	return nil
}

var _ Mailer = (*ResendMailer)(nil)

// ============================================================================
// NoopMailer - 测试/本地开发用
// ============================================================================

// NoopMailer 把邮件记到内存，开发环境与测试使用
type NoopMailer struct {
	Codes   map[string]string // to -> 最近一次验证码
	Replies []string
}

// NewNoopMailer 创建空操作发信器
func NewNoopMailer() *NoopMailer {
	return &NoopMailer{Codes: make(map[string]string)}
}

func (m *NoopMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	m.Codes[to] = code
	return nil
}

func (m *NoopMailer) SendSupportReply(ctx context.Context, to, category, response string) error {
	m.Replies = append(m.Replies, to+": "+response)
	return nil
}

var _ Mailer = (*NoopMailer)(nil)
