package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-tx-propagation/internal/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// PrometheusMiddleware は HTTP メトリクスを収集する
// path ラベルにはルート定義（/api/v1/orders/:id）を使う
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return PrometheusWithSkipper(m, func(c echo.Context) bool {
		return c.Path() == "/metrics"
	})
}

// PrometheusWithSkipper は skipper が true を返すリクエストを計測しない
func PrometheusWithSkipper(m *metrics.Metrics, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			method := c.Request().Method
			route := routeLabel(c)
			m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(responseStatus(c, err))).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
			return err
		}
	}
}

func routeLabel(c echo.Context) string {
	switch route := c.Path(); route {
	case "", "/*":
		return unmatchedRoute
	default:
		return route
	}
}

// responseStatus はエラーハンドラーが書き込む前の状態コードを推定する
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	if err != nil && !c.Response().Committed {
		return 500
	}
	return c.Response().Status
}
