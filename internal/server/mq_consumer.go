package server

import (
	"context"
	"encoding/json"

	"rewards-service/internal/biz"
	"rewards-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer consumes view events from RocketMQ
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	reading *biz.ReadingUseCase
	conf    *conf.Data
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer creates a RocketMQ consumer server
func NewMQConsumerServer(c *conf.Bootstrap, reading *biz.ReadingUseCase, logger log.Logger) *MQConsumerServer {
	helper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false, log: helper}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Data.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Data.Rocketmq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(100),
	)
	if err != nil {
		helper.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false, log: helper}
	}

	return &MQConsumerServer{
		c:       r,
		reading: reading,
		conf:    c.Data,
		log:     helper,
		enabled: true,
	}
}

// Start starts the consumer
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.ViewTopic)

	err := s.c.Subscribe(s.conf.Rocketmq.ViewTopic, consumer.MessageSelector{}, s.handler)
	if err != nil {
		// 开发环境 RocketMQ 可能不可用，不让整个应用启动失败
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.ViewTopic, err)
		return nil
	}

	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var event biz.ViewEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			// 坏消息重试也不会变好，记日志后丢弃
			s.log.Errorf("Unmarshal view event failed: %v, body: %s", err, string(msg.Body))
			continue
		}

		if _, err := s.reading.RecordView(ctx, event.ToViewInput()); err != nil {
			s.log.Errorf("RecordView failed: event_id=%s, viewer_id=%s, content_id=%s, error=%v",
				event.EventID, event.ViewerID, event.ContentID, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
