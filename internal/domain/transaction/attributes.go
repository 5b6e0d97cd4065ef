package transaction

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownErrorKind は未登録のエラー種別名が指定されたことを表す
var ErrUnknownErrorKind = errors.New("未登録のエラー種別です")

// KindRegistry は設定ファイルから参照するエラー種別を名前で管理する
type KindRegistry struct {
	kinds map[string]ErrorKind
}

// NewKindRegistry は組み込み種別（any, recoverable）を登録したレジストリを作成する
func NewKindRegistry() *KindRegistry {
	r := &KindRegistry{kinds: make(map[string]ErrorKind)}
	r.Register("any", AnyError())
	r.Register("recoverable", KindOfType[Recoverable]())
	return r
}

// Register は名前付きのエラー種別を登録する
func (r *KindRegistry) Register(name string, k ErrorKind) {
	r.kinds[name] = k
}

// Lookup は名前からエラー種別を引く
func (r *KindRegistry) Lookup(name string) (ErrorKind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

func (r *KindRegistry) resolve(names []string) ([]ErrorKind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	kinds := make([]ErrorKind, 0, len(names))
	for _, n := range names {
		k, ok := r.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownErrorKind, n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// AttributeDefinition は設定ファイル上のトランザクション属性
type AttributeDefinition struct {
	// Disabled は操作をトランザクション境界の外で実行させる
	Disabled      bool     `yaml:"disabled"`
	RequiresNew   bool     `yaml:"requires_new"`
	ReadOnly      bool     `yaml:"read_only"`
	RollbackFor   []string `yaml:"rollback_for"`
	NoRollbackFor []string `yaml:"no_rollback_for"`
}

type attributeFile struct {
	Transactions map[string]AttributeDefinition `yaml:"transactions"`
}

// AttributeSource は操作名ごとのトランザクション属性を保持する
type AttributeSource struct {
	attrs    map[string]Options
	disabled map[string]bool
}

// NewAttributeSource は空の AttributeSource を作成する
func NewAttributeSource() *AttributeSource {
	return &AttributeSource{attrs: make(map[string]Options), disabled: make(map[string]bool)}
}

// Set は操作名に属性を設定する
func (s *AttributeSource) Set(name string, o Options) {
	o.Name = name
	s.attrs[name] = o
	delete(s.disabled, name)
}

// Disable は操作の属性を取り除き、境界なしで実行させる
func (s *AttributeSource) Disable(name string) {
	delete(s.attrs, name)
	s.disabled[name] = true
}

// Get は操作名の属性を返す（未定義ならデフォルト属性）
func (s *AttributeSource) Get(name string) Options {
	if o, ok := s.attrs[name]; ok {
		return o
	}
	return Options{Name: name}
}

// Has は操作名の属性が定義済みかを返す
func (s *AttributeSource) Has(name string) bool {
	_, ok := s.attrs[name]
	return ok
}

// Names は定義済みの操作名を返す
func (s *AttributeSource) Names() []string {
	names := make([]string, 0, len(s.attrs))
	for n := range s.attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge は other の属性で上書きする
func (s *AttributeSource) Merge(other *AttributeSource) {
	if other == nil {
		return
	}
	for n, o := range other.attrs {
		s.Set(n, o)
	}
	for n := range other.disabled {
		s.Disable(n)
	}
}

// ParseAttributes は YAML からトランザクション属性を読み込む
//
//	transactions:
//	  log.save:
//	    requires_new: true
//	  order.place:
//	    rollback_for: [not_enough_money]
//	  member.join:
//	    disabled: true
func ParseAttributes(data []byte, kinds *KindRegistry) (*AttributeSource, error) {
	var f attributeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("トランザクション属性の解析に失敗: %w", err)
	}
	if kinds == nil {
		kinds = NewKindRegistry()
	}
	src := NewAttributeSource()
	for name, def := range f.Transactions {
		if def.Disabled {
			src.Disable(name)
			continue
		}
		rollbackFor, err := kinds.resolve(def.RollbackFor)
		if err != nil {
			return nil, fmt.Errorf("%s.rollback_for: %w", name, err)
		}
		noRollbackFor, err := kinds.resolve(def.NoRollbackFor)
		if err != nil {
			return nil, fmt.Errorf("%s.no_rollback_for: %w", name, err)
		}
		src.Set(name, Options{
			RequiresNew:   def.RequiresNew,
			ReadOnly:      def.ReadOnly,
			RollbackFor:   rollbackFor,
			NoRollbackFor: noRollbackFor,
		})
	}
	return src, nil
}

// LoadAttributes はファイルからトランザクション属性を読み込む
func LoadAttributes(path string, kinds *KindRegistry) (*AttributeSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("トランザクション属性ファイルの読み込みに失敗: %w", err)
	}
	return ParseAttributes(data, kinds)
}
