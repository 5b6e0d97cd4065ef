package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-tx-propagation/internal/config"
)

// MetricsBasicAuth は /metrics 用の Basic 認証ミドルウェア
// 認証情報が未設定の場合は素通しする（ローカル開発用）
func MetricsBasicAuth(cfg *config.MetricsConfig) echo.MiddlewareFunc {
	enabled := cfg.AuthEnabled()
	var user, pass []byte
	if enabled {
		user, pass = []byte(cfg.User), []byte(cfg.Password)
	}

	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(echo.Context) bool { return !enabled },
		Realm:   "metrics",
		Validator: func(u, p string, c echo.Context) (bool, error) {
			// 両方を必ず比較する
			userOK := subtle.ConstantTimeCompare([]byte(u), user) == 1
			passOK := subtle.ConstantTimeCompare([]byte(p), pass) == 1
			return userOK && passOK, nil
		},
	})
}
