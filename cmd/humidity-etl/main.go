// Command humidity-etl turns a gridded relative humidity store into monthly
// land-only vector tile archives, a tileserver-gl config and a map viewer.
//
// Usage:
//
//	humidity-etl run                 # every stage
//	humidity-etl run --serve         # keep /healthz, /readyz, /metrics up after the run
//	humidity-etl polygonize --start 2024-01 --end 2024-12
//
// Settings come from the environment (see internal/config); --start and
// --end override START_MONTH and END_MONTH. run and fetch need STORE_URL.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
