package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
// TransactionScope より外側に置くこと。ハンドラー終了時に完了していない
// トランザクションが残っていればエラーとして記録する
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			status := res.Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			fields := []zap.Field{
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}

			// c.Request() は TransactionScope で差し替えられたリクエスト
			if reg, ok := transaction.RegistryFrom(req.Context()); ok {
				if reg.IsActive() || reg.SuspendedCount() > 0 {
					logger.Error("未完了のトランザクションが残っています",
						append(fields,
							zap.String("tx_id", reg.CurrentID()),
							zap.Int("suspended", reg.SuspendedCount()),
						)...)
				}
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Get().Log(levelFor(status, err), "request completed", fields...)
			return err
		}
	}
}

func levelFor(status int, err error) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case err != nil:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}
