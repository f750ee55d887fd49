// Package swaptor validates the onion addresses Makers advertise in their
// offers. The anonymizing transport itself — hidden-service setup, the
// SOCKS proxy dial — is an external collaborator and out of scope; this
// package only checks that an advertised address is well-formed before the
// Taker hands it to that collaborator.
package swaptor

import (
	"fmt"
	"strings"

	"github.com/tv42/zbase32"
)

const (
	v2AddressLen = 16 // base32, legacy 80-bit service id
	v3AddressLen = 56 // base32, ed25519-based service id

	onionSuffix = ".onion"
)

// ParseOnionAddress validates addr as a hidden-service address in the form
// "<service-id>.onion[:port]" and returns the bare host part. It accepts
// both legacy v2 (16-char) and v3 (56-char) service ids.
func ParseOnionAddress(addr string) (string, error) {
	host := addr
	if idx := strings.LastIndexByte(addr, ':'); idx != -1 {
		host = addr[:idx]
	}

	if !strings.HasSuffix(host, onionSuffix) {
		return "", fmt.Errorf("swaptor: %q is not a .onion address", addr)
	}

	serviceID := strings.TrimSuffix(host, onionSuffix)
	switch len(serviceID) {
	case v2AddressLen, v3AddressLen:
	default:
		return "", fmt.Errorf("swaptor: %q has an invalid service id length %d",
			addr, len(serviceID))
	}

	if !isBase32(serviceID) {
		return "", fmt.Errorf("swaptor: %q is not valid base32", addr)
	}

	return host, nil
}

func isBase32(s string) bool {
	for _, r := range strings.ToLower(s) {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz234567", r) {
			return false
		}
	}
	return true
}

// EncodeLegacyServiceID zbase32-encodes a legacy v2 service id's raw public
// key hash, matching the text encoding some older directory servers still
// advertise alongside v3 addresses.
func EncodeLegacyServiceID(pubKeyHash []byte) string {
	return zbase32.EncodeToString(pubKeyHash)
}

// DecodeLegacyServiceID reverses EncodeLegacyServiceID.
func DecodeLegacyServiceID(s string) ([]byte, error) {
	raw, err := zbase32.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("swaptor: invalid legacy service id: %w", err)
	}
	return raw, nil
}
