// Package xkeylock 提供基于 key 的进程内互斥锁注册表。
//
// 每个不同的 key 在首次使用时惰性创建一个互斥量：相同 key 的操作串行执行，
// 不同 key 的操作可完全并行。key 可以是任意类型，只要配置的 [Comparer]
// 能判定相等并计算哈希（整数、时间戳、指针身份、大小写敏感/不敏感的字符串等）。
//
// # 核心 API
//
//   - [New]：使用 Go 原生 == 语义（指针按身份比较）
//   - [NewWithComparer]：注入自定义相等/哈希策略
//   - [NewNamed]：字符串 key 的便捷构造，默认 [Ordinal]
//   - [Registry.RunExclusive] / [RunExclusiveValue]：持锁执行，任意退出路径都会释放
//   - [Registry.GetLock]：返回原始 [Handle]（高级用法，需自行配对 Lock/Unlock）
//   - [Registry.RemoveLock]：移除 key 的映射，不影响已持有的 Handle
//
// # 字符串相等策略
//
//	策略           相等判定                        哈希
//	──────────────────────────────────────────────────────────
//	Ordinal        逐字节相等                      xxhash
//	IgnoreCase     Unicode 完整大小写折叠后相等    xxhash(折叠结果)
//	Locale         collation key 相等              xxhash(collation key)
//
// # 并发模型
//
//   - 分片 map：默认 32 分片，get-or-insert 在分片锁内一次完成，
//     并发首次获取同一 key 只会产生一个 Handle
//   - GetLock 只在分片锁上短暂阻塞，从不等待 key 的互斥量
//   - 等待者之间没有 FIFO 保证
//   - 不可重入：同一 goroutine 对同一 key 嵌套 RunExclusive 会死锁
//   - 同时持有多个 key 时，调用方需按一致顺序获取以避免死锁
//
// # RemoveLock 注意事项
//
// 注册表不做引用计数。RemoveLock 只影响后续查找：已拿到 Handle 的持有者和等待者
// 继续使用旧 Handle，而新的调用会创建新 Handle。若 RemoveLock 与同一 key 的
// 新获取并发，两个调用方可能短暂持有同一逻辑 key 的不同 Handle，互斥失效。
// 仅在确认没有并发获取该 key 时调用 RemoveLock。
//
// # 扩展
//
//   - [Registry.RunExclusiveContext]：等待受 ctx 约束（ctx 不得为 nil，否则 panic）
//   - [Registry.TryRunExclusive]：非阻塞，key 被占用时返回 false
//   - [WithLogger] / [WithObserver] / [WithSlowWait]：日志与观测
package xkeylock
