//go:build wireinject
// +build wireinject

package main

import (
	"rewards-service/internal/biz"
	"rewards-service/internal/conf"
	"rewards-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp 初始化应用
func wireApp(*conf.Bootstrap, log.Logger) (*CronApp, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		wire.Struct(new(CronApp), "*"),
	))
}
