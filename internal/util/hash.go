// Package util provides shared utility functions.
package util

import (
	"hash/fnv"
	"net"
)

// PeerID computes a 4-byte hash of a remote UDP address. The hash is used
// solely to tag log lines and monitor events; it is not a UDT socket id.
func PeerID(addr net.Addr) uint32 {
	h := fnv.New32a()
	h.Write([]byte(addr.Network()))
	h.Write([]byte(addr.String()))
	return h.Sum32()
}
