package member

import "context"

// Repository は会員リポジトリのインターフェース
type Repository interface {
	// Save は会員を保存する（トランザクション必須）
	Save(ctx context.Context, member *Member) error

	// FindByUsername はユーザー名から会員を取得する
	FindByUsername(ctx context.Context, username string) (*Member, error)
}
