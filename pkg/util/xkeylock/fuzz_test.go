package xkeylock

import (
	"testing"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FuzzComparerConsistency 检查 Equal 为 true 时 Hash 必须一致。
func FuzzComparerConsistency(f *testing.F) {
	f.Add("key", "KEY")
	f.Add("straße", "STRASSE")
	f.Add("", "")
	f.Add("中文key", "中文KEY")
	f.Add("\u00e9", "e\u0301")

	comparers := []Comparer[string]{
		Ordinal(),
		ComparableComparer[string](),
		IgnoreCase(),
		Locale(language.English),
		Locale(language.English, collate.IgnoreCase),
	}

	f.Fuzz(func(t *testing.T, a, b string) {
		for i, cmp := range comparers {
			if cmp.Equal(a, b) != cmp.Equal(b, a) {
				t.Fatalf("comparer %d: Equal not symmetric for %q, %q", i, a, b)
			}
			if !cmp.Equal(a, a) {
				t.Fatalf("comparer %d: Equal not reflexive for %q", i, a)
			}
			if cmp.Equal(a, b) && cmp.Hash(a) != cmp.Hash(b) {
				t.Fatalf("comparer %d: equal keys %q, %q hash differently", i, a, b)
			}
		}
	})
}

func FuzzRunExclusive(f *testing.F) {
	f.Add("key1")
	f.Add("")
	f.Add("key/with/slashes")
	f.Add("中文key")

	f.Fuzz(func(t *testing.T, key string) {
		r := newForTest[string](t, WithShardCount(4))

		ran := false
		if err := r.RunExclusive(key, func() error {
			ran = true
			return nil
		}); err != nil {
			t.Fatalf("RunExclusive(%q): %v", key, err)
		}
		if !ran {
			t.Fatalf("fn not called for %q", key)
		}
		h := r.GetLock(key)
		if h.Key() != key {
			t.Fatalf("Key mismatch: got %q, want %q", h.Key(), key)
		}
		if !h.TryLock() {
			t.Fatalf("lock for %q still held", key)
		}
		h.Unlock()
		r.RemoveLock(key)
		if r.Len() != 0 {
			t.Fatalf("Len after remove = %d", r.Len())
		}
	})
}
