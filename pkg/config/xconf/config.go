package xconf

import "github.com/knadh/koanf/v2"

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 定义配置接口。
// 只提供增值功能，基础读取请直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回底层的 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 将 path 处的配置反序列化到 target，path 为空时反序列化整个配置。
	// 字符串形式的 time.Duration（如 "50ms"）和实现 encoding.TextUnmarshaler 的字段会自动转换。
	Unmarshal(path string, target any) error

	// Path 返回配置文件路径，从字节数据创建时为空。
	Path() string

	// Format 返回配置格式。
	Format() Format
}
