// Package xconf 基于 koanf 的配置加载，支持 YAML 和 JSON。
//
//	cfg, err := xconf.New("xkeylockctl.yaml")
//	if err != nil {
//		return err
//	}
//	var settings Settings
//	if err := cfg.Unmarshal("", &settings); err != nil {
//		return err
//	}
//
// 文件格式按扩展名识别（.yaml/.yml/.json）；[NewFromBytes] 需显式指定格式，
// 适用于内嵌默认配置或 ConfigMap 挂载内容。
package xconf
