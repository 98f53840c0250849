package service

import (
	"rewards-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// RewardsService 阅读收益服务
type RewardsService struct {
	reading *biz.ReadingUseCase
	log     *log.Helper
}

// NewRewardsService 创建 RewardsService
func NewRewardsService(reading *biz.ReadingUseCase, logger log.Logger) *RewardsService {
	return &RewardsService{
		reading: reading,
		log:     log.NewHelper(logger),
	}
}

// RecordViewRequest 上报阅读事件请求
type RecordViewRequest struct {
	ContentID      string  `json:"content_id"`
	ReadPercentage float64 `json:"read_percentage"`
	ReadDuration   int32   `json:"read_duration"`
	IsBot          bool    `json:"is_bot"`
	Liked          bool    `json:"liked"`
	Commented      bool    `json:"commented"`
	Saved          bool    `json:"saved"`
	Shared         bool    `json:"shared"`
}

// RecordViewReply 上报阅读事件响应
type RecordViewReply struct {
	Recorded    bool   `json:"recorded"`
	Qualified   bool   `json:"qualified"`
	CoinsEarned int64  `json:"coins_earned"`
	Result      string `json:"result"`
}

// RegisterRoutes 注册 HTTP 路由
func (s *RewardsService) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.POST("/views", s.handleRecordView)
}

func (s *RewardsService) handleRecordView(ctx khttp.Context) error {
	viewerID, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req RecordViewRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	result, err := s.reading.RecordView(ctx, &biz.ViewInput{
		ViewerID:       viewerID,
		ContentID:      req.ContentID,
		ReadPercentage: req.ReadPercentage,
		ReadDuration:   req.ReadDuration,
		IsBot:          req.IsBot,
		Liked:          req.Liked,
		Commented:      req.Commented,
		Saved:          req.Saved,
		Shared:         req.Shared,
	})
	if err != nil {
		s.log.Errorf("RecordView failed: viewer_id=%s, content_id=%s, error=%v", viewerID, req.ContentID, err)
		return err
	}

	return ctx.Result(200, &RecordViewReply{
		Recorded:    result.Recorded,
		Qualified:   result.Qualified,
		CoinsEarned: result.CoinsEarned,
		Result:      result.Result,
	})
}
