// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、text/json 格式、轮转、属性治理）
//   - 动态级别调整（运行时热更新，派生 logger 同步生效）
//   - 便捷属性：[Err]、[Duration]、[Component]、[Operation]、[Count]、[LockKey]、[Wait]
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//		SetLevel(xlog.LevelDebug).
//		SetFormat("json").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// Builder 遵循 first-error-wins：第一个配置错误之后的 Set 操作被跳过，由 Build 返回。
//
// # 派生 Logger 与级别控制
//
// [Logger.With] 和 [Logger.WithGroup] 返回 [Logger] 接口；底层实现同时实现了
// [LoggerWithLevel]，可通过类型断言获取级别控制能力。
package xlog
