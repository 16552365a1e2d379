// Package contend 并发驱动一组按 key 加锁的临界区，并记录临界区是否发生重叠。
//
// 本包是 internal 包，供 cmd/xkeylockctl 和 xkeylock 的场景测试使用。
//
// 判定方式：任意两个临界区在时间上交叠即视为重叠。对相等的 key，
// 正确的注册表不会产生重叠；对不同的 key，只要持锁时间足够长，应观察到重叠。
package contend
