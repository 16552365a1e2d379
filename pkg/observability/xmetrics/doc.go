// Package xmetrics 提供统一的可观测性接口（metrics + tracing）。
//
// 业务代码只依赖最小化接口 Observer/Span/Attr，默认实现基于 OpenTelemetry。
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xkeylock",
//		Operation: "run_exclusive",
//	})
//	defer span.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
//   - xkeylock.operation.total：计数，属性 component / operation / status
//   - xkeylock.operation.duration：耗时直方图（秒），属性同上
//   - xkeylock.lock.wait：等待互斥量的耗时直方图（秒），属性 component / operation / acquired，
//     仅在 Result.Wait 非 nil 时记录
package xmetrics
