package auditlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

func TestLog_Validate(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		expectedErr error
	}{
		{name: "有効なログ", message: "alice"},
		{name: "空のメッセージ", message: " ", expectedErr: ErrMessageRequired},
		{name: "障害マーカーを含む", message: FailureMarker + "_alice", expectedErr: ErrLogRejected},
		{name: "途中に障害マーカーを含む", message: "bob_" + FailureMarker, expectedErr: ErrLogRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLog(tt.message)
			err := l.Validate()
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.NotZero(t, l.CreatedAt)
			}
		})
	}
}

func TestErrLogRejected_IsUnrecoverable(t *testing.T) {
	assert.False(t, transaction.IsRecoverable(ErrLogRejected))
	assert.True(t, transaction.Options{}.RollbackOn(ErrLogRejected))
}
