package handler

import (
	"context"

	"github.com/sanosuguru/go-tx-propagation/internal/application"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
)

// MemberServiceInterface は会員サービスのインターフェース
type MemberServiceInterface interface {
	Join(ctx context.Context, username string, mode application.JoinMode) (*member.Member, error)
	FindMember(ctx context.Context, username string) (*member.Member, error)
	FindLog(ctx context.Context, message string) (*auditlog.Log, error)
}

// OrderServiceInterface は注文サービスのインターフェース
type OrderServiceInterface interface {
	PlaceOrder(ctx context.Context, input application.PlaceOrderInput) (*order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
}
