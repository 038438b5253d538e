package xconf

import "testing"

func FuzzParse(f *testing.F) {
	f.Add([]byte(sampleYAML), "yaml")
	f.Add([]byte(`{"caches":{"a":{"max_entries":3}}}`), "json")
	f.Add([]byte("caches: {a: {preset: ui, weights: {low: -1}}}"), "yaml")

	f.Fuzz(func(t *testing.T, data []byte, format string) {
		file, err := Parse(data, Format(format))
		if err != nil {
			return
		}
		// 解析成功意味着所有缓存配置都能通过 xbcache 校验
		if _, err := file.CacheConfigs(); err != nil {
			t.Fatalf("validated file yields invalid cache config: %v", err)
		}
	})
}
