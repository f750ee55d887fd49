package main

import "fmt"

// appMajor, appMinor, and appPatch form the semantic version reported by
// coinswapd --version, the startup log line and the Ping RPC. The
// MakerHello/TakerHello handshake carries swapwire.ProtocolVersion instead.
const (
	appMajor = 0
	appMinor = 1
	appPatch = 0
)

func version() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}
