// Package util provides shared utility functions.
package util

import (
	"hash/fnv"
	"net"
)

// LinkID computes a 4-byte hash from a link's two endpoint labels. The hash
// is used solely to tag log lines and does not need to be reversible.
func LinkID(local, remote string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(local))
	h.Write([]byte(remote))
	return h.Sum32()
}

// LinkIDFromConn computes the LinkID of a network connection's 4-tuple.
func LinkIDFromConn(conn net.Conn) uint32 {
	return LinkID(conn.LocalAddr().String(), conn.RemoteAddr().String())
}
