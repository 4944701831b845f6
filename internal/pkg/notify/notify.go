package notify

import "context"

// Mailer 定义邮件发送接口。
type Mailer interface {
	// Send 发送一封纯文本邮件。
	//
	// 参数:
	//   ctx: 上下文（调用方负责加超时）
	//   to: 接收邮箱
	//   subject: 主题
	//   body: 正文
	Send(ctx context.Context, to string, subject string, body string) error
}
