package auditlog

import "context"

// Repository はログリポジトリのインターフェース
type Repository interface {
	// Save はログを保存する（トランザクション必須）
	Save(ctx context.Context, log *Log) error

	// FindByMessage はメッセージからログを取得する
	FindByMessage(ctx context.Context, message string) (*Log, error)
}
