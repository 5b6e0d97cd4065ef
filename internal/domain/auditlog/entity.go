package auditlog

import (
	"strings"
	"time"
)

// FailureMarker を含むメッセージは保存時に拒否される（障害の再現用）
const FailureMarker = "logException"

// Log は監査ログエンティティを表す
type Log struct {
	ID        string
	Message   string
	CreatedAt time.Time
}

// NewLog は新しいログを作成する
func NewLog(message string) *Log {
	return &Log{
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// Validate はログの検証を行う
func (l *Log) Validate() error {
	if strings.TrimSpace(l.Message) == "" {
		return ErrMessageRequired
	}
	if strings.Contains(l.Message, FailureMarker) {
		return ErrLogRejected
	}
	return nil
}
