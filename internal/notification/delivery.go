package notification

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

// Sender 由 *mail.Client 实现
type Sender interface {
	DialAndSend(messages ...*mail.Msg) error
}

type Deliverer struct {
	sender Sender
	from   string
	logger *slog.Logger
}

func NewDeliverer(sender Sender, from string, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{sender: sender, from: from, logger: logger}
}

type queuedMessage struct {
	Type domain.MailKind `json:"type"`
	To   string          `json:"to"`
	Lang domain.Language `json:"lang"`
	Data json.RawMessage `json:"data"`
}

func decodeData(kind domain.MailKind, raw json.RawMessage) (any, error) {
	switch kind {
	case domain.MailCreateUser:
		data := domain.CreateUserMailData{}
		err := json.Unmarshal(raw, &data)
		return data, err
	case domain.MailOvertimePending, domain.MailOvertimeApproved, domain.MailOvertimeRejected,
		domain.MailOvertimeCancelled, domain.MailOvertimeCorrected:
		data := domain.OvertimeMailData{}
		err := json.Unmarshal(raw, &data)
		return data, err
	default:
		return nil, fmt.Errorf("不支持的邮件类型: %s", kind)
	}
}

// Build 将队列中的消息反序列化、渲染并构造成待发送的邮件
func (d *Deliverer) Build(body []byte) (*mail.Msg, error) {
	queued := queuedMessage{}
	if err := json.Unmarshal(body, &queued); err != nil {
		return nil, err
	}

	data, err := decodeData(queued.Type, queued.Data)
	if err != nil {
		return nil, err
	}

	rendered, err := Render(queued.Type, queued.Lang, data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(d.from); err != nil {
		return nil, err
	}
	if err := msg.To(queued.To); err != nil {
		return nil, err
	}
	msg.Subject(rendered.Subject)
	msg.SetBodyString(mail.TypeTextHTML, rendered.HTMLBody)

	return msg, nil
}

// Handle 处理一条消息：无法解析的消息直接丢弃，发送失败的消息重新入队
func (d *Deliverer) Handle(delivery amqp.Delivery) {
	msg, err := d.Build(delivery.Body)
	if err != nil {
		d.logger.Error("无法构建邮件", slog.String("error", err.Error()))
		_ = delivery.Nack(false, false)
		return
	}

	if err := d.sender.DialAndSend(msg); err != nil {
		d.logger.Error("邮件发送失败", slog.String("error", err.Error()))
		_ = delivery.Nack(false, true)
		return
	}

	_ = delivery.Ack(false)
}
