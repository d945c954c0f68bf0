package handler

import (
	"github.com/shipcluster/server/internal/block"
	"github.com/shipcluster/server/internal/session"
)

// writeFrame puts one packet on the wire for sess, reusing the block
// runtime's own frame writer so every outbound packet — whether sent from
// the tick loop or from a handler invoked on the per-connection goroutine
// — shares one framing implementation.
func writeFrame(sess *session.Session, pkt []byte) error {
	return block.WriteFrame(sess.Conn(), pkt)
}
