package cfgloader

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rise-and-shine/filesmanager/mask"
)

// printConfig logs the loaded config one dotted key per line.
// Fields tagged `mask:"true"` are hidden.
func printConfig(config any) {
	om := mask.StructToOrdMap(config)
	if om == nil {
		return
	}

	var b strings.Builder
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(&b, "  %s: %v\n", pair.Key, pair.Value)
	}
	slog.Info("[cfgloader]: loaded config:\n" + b.String())
}
