package xkeylock

import (
	"bytes"
	"hash/maphash"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparer 定义 key 的相等与哈希策略。
//
// 实现必须满足：Equal(a, b) 为 true 时 Hash(a) == Hash(b)，且方法并发安全。
type Comparer[K any] interface {
	// Equal 判断两个 key 是否表示同一逻辑资源。
	Equal(a, b K) bool

	// Hash 返回 key 的哈希值，用于选择分片和桶。
	Hash(key K) uint64
}

// ComparableComparer 返回基于 Go == 语义的 Comparer。
// 指针和接口中的指针按身份比较，结构相同的不同对象视为不同 key。
// 每个实例使用独立的随机种子。
func ComparableComparer[K comparable]() Comparer[K] {
	return comparableComparer[K]{seed: maphash.MakeSeed()}
}

type comparableComparer[K comparable] struct {
	seed maphash.Seed
}

func (comparableComparer[K]) Equal(a, b K) bool { return a == b }

func (c comparableComparer[K]) Hash(key K) uint64 {
	return maphash.Comparable(c.seed, key)
}

// Ordinal 返回逐字节比较的字符串 Comparer（大小写敏感）。
func Ordinal() Comparer[string] {
	return ordinalComparer{}
}

type ordinalComparer struct{}

func (ordinalComparer) Equal(a, b string) bool { return a == b }

func (ordinalComparer) Hash(key string) uint64 { return xxhash.Sum64String(key) }

// IgnoreCase 返回大小写不敏感的字符串 Comparer。
// 使用 Unicode 完整大小写折叠（如 "ß" 与 "SS" 相等），与语言环境无关。
func IgnoreCase() Comparer[string] {
	return ignoreCaseComparer{}
}

type ignoreCaseComparer struct{}

// fold 每次创建新的 Caser：cases.Caser 有内部状态，不能跨 goroutine 共享。
func fold(s string) string {
	return cases.Fold().String(s)
}

func (ignoreCaseComparer) Equal(a, b string) bool {
	if a == b {
		return true
	}
	return fold(a) == fold(b)
}

func (ignoreCaseComparer) Hash(key string) uint64 {
	return xxhash.Sum64String(fold(key))
}

// Locale 返回按语言环境排序规则判等的字符串 Comparer。
// 两个字符串的 collation key 相同即视为相等，opts 控制比较强度，
// 例如 collate.IgnoreCase、collate.IgnoreDiacritics、collate.IgnoreWidth。
//
//	cmp := xkeylock.Locale(language.German, collate.IgnoreCase)
func Locale(tag language.Tag, opts ...collate.Option) Comparer[string] {
	return &localeComparer{
		pool: sync.Pool{
			New: func() any { return collate.New(tag, opts...) },
		},
	}
}

// localeComparer 池化 Collator：collate.Collator 不支持并发使用。
type localeComparer struct {
	pool sync.Pool
}

func (c *localeComparer) key(s string) []byte {
	col, ok := c.pool.Get().(*collate.Collator)
	if !ok {
		// 不应发生，pool.New 总是返回 *collate.Collator
		panic("xkeylock: unexpected collator type")
	}
	defer c.pool.Put(col)

	var buf collate.Buffer
	return col.KeyFromString(&buf, s)
}

func (c *localeComparer) Equal(a, b string) bool {
	if a == b {
		return true
	}
	return bytes.Equal(c.key(a), c.key(b))
}

func (c *localeComparer) Hash(key string) uint64 {
	return xxhash.Sum64(c.key(key))
}

// TimeComparer 返回按时间点判等的 Comparer。
// 同一时刻在不同时区（Location）下的 time.Time 视为同一 key，
// 单调时钟读数被忽略。
func TimeComparer() Comparer[time.Time] {
	return timeComparer{seed: maphash.MakeSeed()}
}

type timeComparer struct {
	seed maphash.Seed
}

func (timeComparer) Equal(a, b time.Time) bool { return a.Equal(b) }

func (c timeComparer) Hash(key time.Time) uint64 {
	return maphash.Comparable(c.seed, [2]int64{key.Unix(), int64(key.Nanosecond())})
}

// 编译期接口检查。
var (
	_ Comparer[int]       = comparableComparer[int]{}
	_ Comparer[string]    = ordinalComparer{}
	_ Comparer[string]    = ignoreCaseComparer{}
	_ Comparer[string]    = (*localeComparer)(nil)
	_ Comparer[time.Time] = timeComparer{}
)
