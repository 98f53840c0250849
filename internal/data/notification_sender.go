package data

import (
	"context"
	"encoding/json"

	"rewards-service/internal/biz"
	"rewards-service/internal/conf"
	"rewards-service/internal/constants"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// notificationSender 通知事件 MQ 生产者，实现 biz.NotificationSender 接口
// MQ 关闭时降级为仅记日志，通知丢失不影响账本
type notificationSender struct {
	data  *Data
	topic string
	log   *log.Helper
}

// NewNotificationSender 创建通知发送器
func NewNotificationSender(c *conf.Bootstrap, data *Data, logger log.Logger) biz.NotificationSender {
	topic := ""
	if c.Data != nil && c.Data.Rocketmq != nil {
		topic = c.Data.Rocketmq.NotificationTopic
	}
	return &notificationSender{
		data:  data,
		topic: topic,
		log:   log.NewHelper(logger),
	}
}

// Send 投递通知事件
func (s *notificationSender) Send(ctx context.Context, event *biz.NotificationEvent) error {
	if s.data.producer == nil || s.topic == "" {
		s.log.Infof("notification (mq disabled): account_id=%s, type=%s", event.AccountID, event.Type)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(s.topic, body)
	msg.WithTag(constants.MQTagNotification)
	msg.WithKeys([]string{event.AccountID})

	if _, err := s.data.producer.SendSync(ctx, msg); err != nil {
		s.log.Errorf("send notification failed: account_id=%s, type=%s, error=%v", event.AccountID, event.Type, err)
		return err
	}
	return nil
}
