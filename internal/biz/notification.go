package biz

import "context"

// NotificationEvent 通知事件，交给下游渲染
type NotificationEvent struct {
	AccountID string            `json:"account_id"`
	Type      string            `json:"type"`
	Payload   map[string]string `json:"payload"`
}

// NotificationSender 通知分发接口
// 发送失败只记录日志，绝不回滚账本写入
type NotificationSender interface {
	Send(ctx context.Context, event *NotificationEvent) error
}
