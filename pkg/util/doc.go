// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xkeylock: 按 key 的进程内互斥注册表，支持自定义判等策略、context 超时和非阻塞执行
package util
