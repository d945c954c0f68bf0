package shipclient

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/channel"
	"github.com/shipcluster/server/internal/masterproto"
)

func acceptAnyPSK(shipID uint32, presented string) bool { return true }

// fakeMaster accepts one connection, performs the server role of the
// handshake, and replies to every received envelope with result.
func fakeMaster(t *testing.T, ln net.Listener, id *channel.HostIdentity, result masterproto.Result) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	secured, err := channel.ServerHandshake(conn, id, acceptAnyPSK)
	if err != nil {
		t.Errorf("server handshake: %v", err)
		return
	}
	sess := channel.NewSession(conn, secured, 0)

	var env masterproto.Envelope
	if err := sess.Recv(&env); err != nil {
		t.Errorf("fake master recv: %v", err)
		return
	}
	reply := masterproto.Envelope{ID: env.ID, Result: result}
	if err := sess.Send(&reply); err != nil {
		t.Errorf("fake master send: %v", err)
	}
}

func TestClientDialAndCall(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	id, err := channel.GenerateHostIdentity()
	if err != nil {
		t.Fatalf("generate host identity: %v", err)
	}

	trustAny := func(peerIP string, hostKey []byte) bool { return true }

	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeMaster(t, ln, id, masterproto.Ok{})
	}()

	c, err := Dial(ln.Addr().String(), trustAny, 1, "test-psk", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	result, err := c.Call(context.Background(), masterproto.RegisterShip{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, ok := result.(masterproto.Ok); !ok {
		t.Fatalf("expected Ok result, got %#v", result)
	}

	<-done
}

func TestClientCallHonorsCanceledContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	id, err := channel.GenerateHostIdentity()
	if err != nil {
		t.Fatalf("generate host identity: %v", err)
	}
	trustAny := func(peerIP string, hostKey []byte) bool { return true }

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		channel.ServerHandshake(conn, id, acceptAnyPSK)
	}()

	c, err := Dial(ln.Addr().String(), trustAny, 1, "test-psk", zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Call(ctx, masterproto.RegisterShip{}); err == nil {
		t.Fatalf("expected canceled context to short-circuit Call")
	}
}
