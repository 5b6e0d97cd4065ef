package member

import (
	"strings"
	"time"
)

// MaxUsernameLength はユーザー名の最大長
const MaxUsernameLength = 64

// Member は会員エンティティを表す
type Member struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// NewMember は新しい会員を作成する
func NewMember(username string) *Member {
	return &Member{
		Username:  strings.TrimSpace(username),
		CreatedAt: time.Now(),
	}
}

// Validate は会員の検証を行う
func (m *Member) Validate() error {
	if m.Username == "" {
		return ErrUsernameRequired
	}
	if len([]rune(m.Username)) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}
