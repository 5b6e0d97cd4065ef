package transaction

import "errors"

// トランザクション管理のエラー定義
var (
	// ErrUnexpectedRollback はコミットを要求したが、参加者により rollback-only とマークされていたため
	// 物理トランザクションがロールバックされたことを表す
	ErrUnexpectedRollback = errors.New("トランザクションは rollback-only とマークされていたためロールバックされました")

	// ErrNoActiveTransaction はアクティブなトランザクションがない状態でデータアクセスしたことを表す
	ErrNoActiveTransaction = errors.New("アクティブなトランザクションがありません")

	// ErrTransactionCompleted は既に完了したハンドルをコミット・ロールバックしようとしたことを表す
	ErrTransactionCompleted = errors.New("トランザクションは既に完了しています")

	// ErrIllegalTransactionState は内側の新規トランザクションが残ったまま外側を完了しようとしたことを表す
	ErrIllegalTransactionState = errors.New("トランザクションの状態が不正です")

	// ErrBeginFailed は物理トランザクションを開始できなかったことを表す
	ErrBeginFailed = errors.New("トランザクション開始に失敗")

	// ErrCommitFailed は物理コミットが失敗したことを表す
	ErrCommitFailed = errors.New("コミットに失敗")

	// ErrInvalidHandle は nil のハンドルが渡されたことを表す
	ErrInvalidHandle = errors.New("トランザクションハンドルが不正です")
)
