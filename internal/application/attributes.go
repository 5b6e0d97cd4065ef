package application

import (
	"fmt"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

// トランザクション属性の操作名
const (
	AttrMemberJoin  = "member.join"
	AttrMemberSave  = "member.save"
	AttrMemberFind  = "member.find"
	AttrLogSave     = "log.save"
	AttrLogFind     = "log.find"
	AttrOrderPlace  = "order.place"
	AttrOrderFind   = "order.find"
	AttrOrderSweep  = "order.sweep"
	AttrOrderCancel = "order.cancel"
)

// NewKindRegistry はポリシーファイルで参照できるエラー種別を登録したレジストリを返す
func NewKindRegistry() *transaction.KindRegistry {
	kinds := transaction.NewKindRegistry()
	kinds.Register("log_rejected", transaction.KindOf(auditlog.ErrLogRejected))
	kinds.Register("member_exists", transaction.KindOf(member.ErrMemberAlreadyExists))
	kinds.Register("not_enough_money", transaction.KindOf(order.ErrNotEnoughMoney))
	kinds.Register("payment_system", transaction.KindOf(order.ErrPaymentSystem))
	return kinds
}

// DefaultAttributes は各操作の既定のトランザクション属性を返す
// member.join を外すと会員登録は外側のトランザクションなしで動く
func DefaultAttributes() *transaction.AttributeSource {
	src := transaction.NewAttributeSource()
	src.Set(AttrMemberJoin, transaction.Options{})
	src.Set(AttrMemberSave, transaction.Options{})
	src.Set(AttrMemberFind, transaction.Options{ReadOnly: true})
	src.Set(AttrLogSave, transaction.Options{})
	src.Set(AttrLogFind, transaction.Options{ReadOnly: true})
	src.Set(AttrOrderPlace, transaction.Options{})
	src.Set(AttrOrderFind, transaction.Options{ReadOnly: true})
	src.Set(AttrOrderSweep, transaction.Options{ReadOnly: true})
	src.Set(AttrOrderCancel, transaction.Options{RequiresNew: true})
	return src
}

// LoadAttributes は既定の属性にポリシーファイルの内容を重ねる
// path が空なら既定の属性をそのまま返す
func LoadAttributes(path string) (*transaction.AttributeSource, error) {
	src := DefaultAttributes()
	if path == "" {
		return src, nil
	}
	override, err := transaction.LoadAttributes(path, NewKindRegistry())
	if err != nil {
		return nil, fmt.Errorf("トランザクション属性の読み込みに失敗: %w", err)
	}
	src.Merge(override)
	return src, nil
}
