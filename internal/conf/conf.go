package conf

import (
	"encoding/json"
	"time"
)

// Duration 配置时长类型，支持 "5s" / "300ms" 等字符串格式
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler，兼容字符串和纳秒数字两种写法
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	}
	return nil
}

// AsDuration 转换为 time.Duration
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return time.Duration(*d)
}

// Bootstrap 启动配置
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Rewards *Rewards `json:"rewards"`
	Log     *Log     `json:"log"`
}

// Server 服务端配置
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP HTTP 服务配置
type HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
	Payment  *Payment  `json:"payment"`
}

// Database 数据库配置
type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

// Rocketmq RocketMQ 配置
type Rocketmq struct {
	Enabled           bool     `json:"enabled"`
	NameServers       []string `json:"name_servers"`
	ViewTopic         string   `json:"view_topic"`
	NotificationTopic string   `json:"notification_topic"`
	GroupName         string   `json:"group_name"`
	RetryTimes        int32    `json:"retry_times"`
}

// Payment 外部支付服务配置
type Payment struct {
	BaseUrl string    `json:"base_url"`
	Timeout *Duration `json:"timeout"`
}

// Rewards 奖励引擎业务配置（零值使用 biz 层默认值）
type Rewards struct {
	MinReadDuration    int32   `json:"min_read_duration"`
	MinReadPercentage  float64 `json:"min_read_percentage"`
	DailyEarningLimit  int64   `json:"daily_earning_limit"`
	ContentEarningCap  int64   `json:"content_earning_cap"`
	SpamStopThreshold  int32   `json:"spam_stop_threshold"`
	CommissionPool     float64 `json:"commission_pool"`
	MinPayoutAmount    float64 `json:"min_payout_amount"`
	MinWithdrawalCoins int64   `json:"min_withdrawal_coins"`
	ViewMilestones     []int64 `json:"view_milestones"`
}

// Log 日志配置
type Log struct {
	Level         string `json:"level"`
	Format        string `json:"format"`
	Output        string `json:"output"`
	FilePath      string `json:"file_path"`
	MaxSize       int    `json:"max_size"`
	MaxAge        int    `json:"max_age"`
	MaxBackups    int    `json:"max_backups"`
	Compress      bool   `json:"compress"`
	EnableConsole bool   `json:"enable_console"`
}
