package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const defaultBodyLimit = "1M"

// Options は共通ミドルウェアの設定
// ゼロ値の項目は既定値を使う
type Options struct {
	BodyLimit string
	// RequestTimeout はリクエストのコンテキストに付ける期限（0 なら付けない）
	// 期限はコネクターの Begin とクエリにそのまま渡る
	RequestTimeout time.Duration
	AllowOrigins   []string
}

// SetupMiddleware は共通ミドルウェアを設定する
//
// 順序: RequestID → RequestLogger → Recover → BodyLimit → CORS → ContextTimeout → TransactionScope
func SetupMiddleware(e *echo.Echo, opts Options) {
	if opts.BodyLimit == "" {
		opts.BodyLimit = defaultBodyLimit
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	e.Use(
		middleware.RequestID(),
		RequestLogger(),
		middleware.Recover(),
		middleware.BodyLimit(opts.BodyLimit),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{echo.GET, echo.HEAD, echo.POST},
		}),
	)
	if opts.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(opts.RequestTimeout))
	}
	// RequestLogger が終了時にスコープを検査できるよう最も内側に置く
	e.Use(TransactionScope())
}
