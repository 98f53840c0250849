package biz

// ViewEvent MQ 阅读事件消息体（view-events 主题）
// 由内容服务在读者离开阅读页时投递，消费侧转换为 ViewInput 处理
type ViewEvent struct {
	EventID        string  `json:"event_id"`
	ViewerID       string  `json:"viewer_id"`
	ContentID      string  `json:"content_id"`
	ReadPercentage float64 `json:"read_percentage"`
	ReadDuration   int32   `json:"read_duration"`
	IsBot          bool    `json:"is_bot"`
	Liked          bool    `json:"liked"`
	Commented      bool    `json:"commented"`
	Saved          bool    `json:"saved"`
	Shared         bool    `json:"shared"`
	Timestamp      int64   `json:"timestamp"`
}

// ToViewInput 转换为业务输入
func (e *ViewEvent) ToViewInput() *ViewInput {
	return &ViewInput{
		ViewerID:       e.ViewerID,
		ContentID:      e.ContentID,
		ReadPercentage: e.ReadPercentage,
		ReadDuration:   e.ReadDuration,
		IsBot:          e.IsBot,
		Liked:          e.Liked,
		Commented:      e.Commented,
		Saved:          e.Saved,
		Shared:         e.Shared,
	}
}
