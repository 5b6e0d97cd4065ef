package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CustomHTTPErrorHandler はハンドラーやミドルウェアから返ったエラーを JSON に変換する
// 4xx の内部エラーは details に出し、5xx の内部エラーはログにだけ残す
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := asHTTPError(err)
	message, ok := he.Message.(string)
	if !ok {
		message = http.StatusText(he.Code)
	}

	resp := ErrorResponse{
		Error:     message,
		Code:      he.Code,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	if he.Internal != nil && he.Code < http.StatusInternalServerError {
		resp.Details = he.Internal.Error()
	}

	if he.Code >= http.StatusInternalServerError {
		logger.Error("サーバーエラー",
			zap.Int("status", he.Code),
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(he.Code)
	} else {
		sendErr = c.JSON(he.Code, resp)
	}
	if sendErr != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(sendErr))
	}
}

// asHTTPError はエラーを *echo.HTTPError にそろえる
// ハンドラーで変換されずに届いたトランザクション系のエラーもここで状態コードを決める
func asHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, transaction.ErrUnexpectedRollback):
		return echo.NewHTTPError(http.StatusConflict, "処理はロールバックされました").SetInternal(err)
	case errors.Is(err, transaction.ErrBeginFailed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "データベースを利用できません").SetInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "処理がタイムアウトしました").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
}
