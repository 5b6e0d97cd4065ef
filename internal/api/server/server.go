package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-tx-propagation/internal/api"
	"github.com/sanosuguru/go-tx-propagation/internal/api/handler"
	"github.com/sanosuguru/go-tx-propagation/internal/api/middleware"
	"github.com/sanosuguru/go-tx-propagation/internal/config"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/metrics"
)

// Deps はルーティングに必要な依存
type Deps struct {
	MemberService handler.MemberServiceInterface
	OrderService  handler.OrderServiceInterface
	// Checks はヘルスチェック対象（名前 -> 疎通確認）
	Checks map[string]func(ctx context.Context) error
	// Metrics が nil の場合は /metrics を公開しない
	Metrics     *metrics.Metrics
	MetricsAuth *config.MetricsConfig
	Middleware  middleware.Options
}

// New はミドルウェアとルートを設定した Echo を返す
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e, d.Middleware)
	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(d.MetricsAuth))
	}

	healthHandler := handler.NewHealthHandler()
	for name, fn := range d.Checks {
		healthHandler.WithCheck(name, fn)
	}
	e.GET("/health", healthHandler.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)

	memberHandler := handler.NewMemberHandler(d.MemberService)
	v1.POST("/members", memberHandler.Join)
	v1.GET("/members/:username", memberHandler.GetByUsername)

	orderHandler := handler.NewOrderHandler(d.OrderService)
	v1.POST("/orders", orderHandler.Place)
	v1.GET("/orders/:id", orderHandler.GetByID)

	return e
}
