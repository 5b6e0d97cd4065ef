package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tx-propagation/internal/application"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

// toHTTPError はサービス層のエラーをHTTPエラーに変換する
func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, transaction.ErrUnexpectedRollback),
		errors.Is(err, member.ErrMemberAlreadyExists),
		errors.Is(err, application.ErrOrderInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())

	case errors.Is(err, order.ErrNotEnoughMoney):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())

	case errors.Is(err, member.ErrMemberNotFound),
		errors.Is(err, auditlog.ErrLogNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())

	case errors.Is(err, member.ErrUsernameRequired),
		errors.Is(err, member.ErrUsernameTooLong),
		errors.Is(err, order.ErrUsernameRequired),
		errors.Is(err, order.ErrInvalidAmount):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, auditlog.ErrLogRejected),
		errors.Is(err, auditlog.ErrMessageRequired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
}
