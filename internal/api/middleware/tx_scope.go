package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

// TransactionScope はリクエストごとにトランザクションレジストリを割り当てる
func TransactionScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(transaction.NewScope(req.Context())))
			return next(c)
		}
	}
}
