package member

import "errors"

// Member ドメインのエラー定義
var (
	ErrMemberNotFound      = errors.New("会員が見つかりません")
	ErrMemberAlreadyExists = errors.New("同じユーザー名の会員が既に存在します")
	ErrUsernameRequired    = errors.New("ユーザー名は必須です")
	ErrUsernameTooLong     = errors.New("ユーザー名が長すぎます")
)
