package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher 由 *amqp.Channel 实现
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Dispatcher struct {
	publisher Publisher
	queue     string
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(publisher Publisher, queue string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		publisher: publisher,
		queue:     queue,
		timeout:   timeout,
		logger:    logger,
	}
}

// Notify 异步地把邮件投递到消息队列，不阻塞调用方，失败只记录日志
func (d *Dispatcher) Notify(kind domain.MailKind, recipient *domain.User, data any) {
	if recipient == nil || recipient.Email == "" {
		d.logger.Warn("收件人没有邮箱，跳过通知", "type", kind)
		return
	}

	message := domain.MailMessage{
		Type: kind,
		To:   recipient.Email,
		Lang: recipient.Language(),
		Data: data,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.publish(message); err != nil {
			d.logger.Error("无法投递邮件到消息队列", "type", kind, "to", message.To, "error", err)
		}
	}()
}

// Publish 同步投递，供需要知道投递结果的调用方使用
func (d *Dispatcher) Publish(message domain.MailMessage) error {
	return d.publish(message)
}

func (d *Dispatcher) publish(message domain.MailMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	return d.publisher.PublishWithContext(
		ctx,
		"",
		d.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Wait 等待所有正在投递的通知完成，在关闭服务器时调用
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
