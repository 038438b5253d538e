package xconf_test

import (
	"fmt"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
)

func ExampleParse() {
	data := []byte(`
pressure:
  threshold: 0.75
caches:
  ui:
    preset: ui
    max_entries: 200
`)
	f, err := xconf.Parse(data, xconf.FormatYAML)
	if err != nil {
		panic(err)
	}
	cfgs, err := f.CacheConfigs()
	if err != nil {
		panic(err)
	}
	ui := cfgs["ui"]
	fmt.Println(f.Pressure.Threshold, ui.MaxEntries, ui.DefaultTTL)

	// Output:
	// 0.75 200 2m0s
}
