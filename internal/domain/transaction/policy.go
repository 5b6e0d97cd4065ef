package transaction

// Reason はロールバック判定の根拠
type Reason string

const (
	ReasonNoError              Reason = "no_error"
	ReasonRollbackFor          Reason = "rollback_for"
	ReasonNoRollbackFor        Reason = "no_rollback_for"
	ReasonDefaultUnrecoverable Reason = "default_unrecoverable"
	ReasonDefaultRecoverable   Reason = "default_recoverable"
)

// Decision はロールバック方針の評価結果
type Decision struct {
	Rollback bool
	Reason   Reason
	// Rule は一致した明示ルール（デフォルト方針の場合は nil）
	Rule ErrorKind
}

// Evaluate はエラーとオプションからコミット・ロールバックを判定する
//
// 評価順:
//  1. RollbackFor に一致すればロールバック
//  2. NoRollbackFor に一致すればコミット
//  3. 回復可能なエラーはコミット、それ以外はロールバック
func Evaluate(err error, opts Options) Decision {
	if err == nil {
		return Decision{Rollback: false, Reason: ReasonNoError}
	}
	if rule := firstMatch(opts.RollbackFor, err); rule != nil {
		return Decision{Rollback: true, Reason: ReasonRollbackFor, Rule: rule}
	}
	if rule := firstMatch(opts.NoRollbackFor, err); rule != nil {
		return Decision{Rollback: false, Reason: ReasonNoRollbackFor, Rule: rule}
	}
	if IsRecoverable(err) {
		return Decision{Rollback: false, Reason: ReasonDefaultRecoverable}
	}
	return Decision{Rollback: true, Reason: ReasonDefaultUnrecoverable}
}

func firstMatch(kinds []ErrorKind, err error) ErrorKind {
	for _, k := range kinds {
		if k != nil && k.Matches(err) {
			return k
		}
	}
	return nil
}
