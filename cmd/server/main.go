package main

import (
	"flag"
	"os"

	"rewards-service/internal/conf"
	"rewards-service/internal/metrics"
	"rewards-service/internal/pkg/logger"
	"rewards-service/internal/server"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	Name     = "rewards-service"
	Version  = "v1.0.0"
	flagconf string
	id, _    = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server, mq *server.MQConsumerServer) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			mq,
		),
	)
}

func main() {
	flag.Parse()

	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	loggerInstance := logger.NewLogger(logConfig(&bc))
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)

	metrics.InitMetrics()

	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}

func logConfig(bc *conf.Bootstrap) *logger.Config {
	cfg := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/rewards-service.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log == nil {
		return cfg
	}
	if bc.Log.Level != "" {
		cfg.Level = bc.Log.Level
	}
	if bc.Log.Format != "" {
		cfg.Format = bc.Log.Format
	}
	if bc.Log.Output != "" {
		cfg.Output = bc.Log.Output
	}
	if bc.Log.FilePath != "" {
		cfg.FilePath = bc.Log.FilePath
	}
	if bc.Log.MaxSize > 0 {
		cfg.MaxSize = bc.Log.MaxSize
	}
	if bc.Log.MaxAge > 0 {
		cfg.MaxAge = bc.Log.MaxAge
	}
	if bc.Log.MaxBackups > 0 {
		cfg.MaxBackups = bc.Log.MaxBackups
	}
	cfg.Compress = bc.Log.Compress
	cfg.EnableConsole = bc.Log.EnableConsole
	return cfg
}
