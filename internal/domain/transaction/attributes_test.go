package transaction

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attributesYAML = `
transactions:
  log.save:
    requires_new: true
  member.find:
    read_only: true
  order.place:
    rollback_for: [payment]
    no_rollback_for: [any]
`

func TestParseAttributes(t *testing.T) {
	errPayment := errors.New("決済エラー")
	kinds := NewKindRegistry()
	kinds.Register("payment", KindOf(errPayment))

	src, err := ParseAttributes([]byte(attributesYAML), kinds)
	require.NoError(t, err)

	assert.Equal(t, []string{"log.save", "member.find", "order.place"}, src.Names())

	logSave := src.Get("log.save")
	assert.Equal(t, "log.save", logSave.Name)
	assert.True(t, logSave.RequiresNew)

	assert.True(t, src.Get("member.find").ReadOnly)

	order := src.Get("order.place")
	require.Len(t, order.RollbackFor, 1)
	require.Len(t, order.NoRollbackFor, 1)
	assert.True(t, order.RollbackOn(errPayment))
	assert.False(t, order.RollbackOn(errors.New("その他")))

	t.Run("未定義の操作はデフォルト属性", func(t *testing.T) {
		o := src.Get("unknown.op")
		assert.Equal(t, "unknown.op", o.Name)
		assert.False(t, o.RequiresNew)
		assert.False(t, src.Has("unknown.op"))
	})
}

func TestParseAttributes_Errors(t *testing.T) {
	t.Run("未登録の種別", func(t *testing.T) {
		_, err := ParseAttributes([]byte("transactions:\n  a:\n    rollback_for: [nope]\n"), nil)
		assert.ErrorIs(t, err, ErrUnknownErrorKind)
	})

	t.Run("不正なYAML", func(t *testing.T) {
		_, err := ParseAttributes([]byte("transactions: [1, 2"), nil)
		assert.Error(t, err)
	})
}

func TestLoadAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(attributesYAML), 0o600))

	kinds := NewKindRegistry()
	kinds.Register("payment", AnyError())
	src, err := LoadAttributes(path, kinds)
	require.NoError(t, err)
	assert.True(t, src.Has("log.save"))

	_, err = LoadAttributes(filepath.Join(t.TempDir(), "missing.yaml"), kinds)
	assert.Error(t, err)
}

func TestAttributeSource_Merge(t *testing.T) {
	base := NewAttributeSource()
	base.Set("log.save", Options{})
	base.Set("member.join", Options{})

	override := NewAttributeSource()
	override.Set("log.save", Options{RequiresNew: true})

	base.Merge(override)
	base.Merge(nil)
	assert.True(t, base.Get("log.save").RequiresNew)
	assert.True(t, base.Has("member.join"))
}

func TestAttributeSource_Disable(t *testing.T) {
	base := NewAttributeSource()
	base.Set("member.join", Options{})
	base.Set("log.save", Options{})

	override, err := ParseAttributes([]byte("transactions:\n  member.join:\n    disabled: true\n"), nil)
	require.NoError(t, err)
	assert.False(t, override.Has("member.join"))

	base.Merge(override)
	assert.False(t, base.Has("member.join"))
	assert.True(t, base.Has("log.save"))
	assert.Equal(t, []string{"log.save"}, base.Names())

	// 再設定すれば有効に戻る
	base.Set("member.join", Options{RequiresNew: true})
	assert.True(t, base.Has("member.join"))
}
