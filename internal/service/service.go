package service

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewRewardsService,
	NewWalletService,
	NewAffiliateService,
	NewSubscriptionService,
)

// accountHeader 身份网关注入的账户ID请求头
const accountHeader = "X-Account-Id"

// accountID 从请求头取出已认证的账户ID
// 身份校验由上游网关完成，缺失视为未认证
func accountID(ctx khttp.Context) (string, error) {
	id := ctx.Request().Header.Get(accountHeader)
	if id == "" {
		return "", kerrors.Unauthorized("UNAUTHENTICATED", "missing "+accountHeader+" header")
	}
	return id, nil
}
