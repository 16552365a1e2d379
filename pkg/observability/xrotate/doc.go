// Package xrotate 提供日志文件轮转。
//
// [NewLumberjack] 基于 lumberjack v2 按文件大小轮转，支持备份数量、保留天数和 gzip 压缩。
// lumberjack 使用 0600 权限创建日志文件。
package xrotate
