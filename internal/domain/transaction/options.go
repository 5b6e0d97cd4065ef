package transaction

import (
	"errors"
	"fmt"
	"reflect"
)

// Options はトランザクションの伝播オプション
type Options struct {
	// Name はログ・メトリクス用の論理トランザクション名
	Name string
	// RequiresNew は既存トランザクションを中断して新しい物理トランザクションを開始する
	RequiresNew bool
	// ReadOnly は読み取り専用の物理トランザクションを開始する（参加時は既存の設定に従う）
	ReadOnly bool
	// RollbackFor に一致するエラーは常にロールバックする
	RollbackFor []ErrorKind
	// NoRollbackFor に一致するエラーはコミットする（RollbackFor が優先）
	NoRollbackFor []ErrorKind
}

// RollbackOn はエラー発生時にロールバックすべきかを返す
func (o Options) RollbackOn(err error) bool {
	return Evaluate(err, o).Rollback
}

func (o Options) propagation() string {
	if o.RequiresNew {
		return "requires_new"
	}
	return "required"
}

// ErrorKind はエラーの種別を表す
// ラップされたエラーチェーンも検査するため、親の種別を指定すれば子の種別にも一致する
type ErrorKind interface {
	Matches(err error) bool
	String() string
}

type sentinelKind struct {
	target error
}

// KindOf は errors.Is で一致判定するエラー種別を返す
func KindOf(target error) ErrorKind {
	return sentinelKind{target: target}
}

func (k sentinelKind) Matches(err error) bool {
	return errors.Is(err, k.target)
}

func (k sentinelKind) String() string {
	return k.target.Error()
}

type typeKind[T error] struct{}

// KindOfType は errors.As で一致判定するエラー種別を返す
// T にインターフェースを指定すると、それを実装する全てのエラーに一致する
func KindOfType[T error]() ErrorKind {
	return typeKind[T]{}
}

func (typeKind[T]) Matches(err error) bool {
	var target T
	return errors.As(err, &target)
}

func (typeKind[T]) String() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

type anyKind struct{}

// AnyError は nil 以外の全てのエラーに一致する種別を返す
func AnyError() ErrorKind {
	return anyKind{}
}

func (anyKind) Matches(err error) bool { return err != nil }

func (anyKind) String() string { return "any" }

// Recoverable は業務上想定された（呼び出し側で回復可能な）エラー
// デフォルトのロールバック方針では、このエラーはコミット対象になる
type Recoverable interface {
	error
	Recoverable() bool
}

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string     { return e.err.Error() }
func (e *recoverableError) Unwrap() error     { return e.err }
func (e *recoverableError) Recoverable() bool { return true }

// MarkRecoverable はエラーを回復可能なエラーとしてラップする
func MarkRecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &recoverableError{err: err}
}

// NewRecoverable は回復可能なエラーを作成する
func NewRecoverable(format string, args ...any) error {
	return MarkRecoverable(fmt.Errorf(format, args...))
}

// IsRecoverable はエラーチェーンに回復可能なエラーが含まれるかを返す
func IsRecoverable(err error) bool {
	var r Recoverable
	if errors.As(err, &r) {
		return r.Recoverable()
	}
	return false
}
