package xkeylock

// Named 是以字符串为 key 的 Registry。
type Named = Registry[string]

// NewNamed 创建字符串 key 的 Registry。
// cmp 为 nil 时使用 [Ordinal]（大小写敏感）；大小写不敏感使用 [IgnoreCase]，
// 按语言环境判等使用 [Locale]。
//
//	names, err := xkeylock.NewNamed(xkeylock.IgnoreCase())
func NewNamed(cmp Comparer[string], opts ...Option) (*Named, error) {
	if cmp == nil {
		cmp = Ordinal()
	}
	return NewWithComparer(cmp, opts...)
}
