package market

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by market. Called by the
// daemon's main logging setup; tests may leave the default no-op logger in
// place.
func UseLogger(logger btclog.Logger) {
	log = logger
}
