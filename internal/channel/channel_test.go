package channel

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestHandshakeAndFrameRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	id, err := GenerateHostIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	acceptAnyPSK := func(shipID uint32, presented string) bool { return true }

	serverDone := make(chan struct{})
	var serverSecured Secured
	var serverErr error
	go func() {
		defer close(serverDone)
		serverSecured, serverErr = ServerHandshake(serverConn, id, acceptAnyPSK)
	}()

	clientSecured, err := ClientHandshake(clientConn, func(ip string, key []byte) bool { return true }, 1, "test-psk")
	<-serverDone
	if serverErr != nil {
		t.Fatalf("server handshake: %v", serverErr)
	}
	if err != nil {
		t.Fatalf("client handshake: %v", err)
	}

	serverSess := NewSession(serverConn, serverSecured, time.Second)
	clientSess := NewSession(clientConn, clientSecured, time.Second)

	type Msg struct {
		Hello string
	}

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- serverSess.Send(Msg{Hello: "world"})
	}()

	var got Msg
	if err := clientSess.Recv(&got); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Hello != "world" {
		t.Fatalf("got %+v", got)
	}
}

func TestClientRejectsUnknownHostkey(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	id, err := GenerateHostIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	go ServerHandshake(serverConn, id, func(shipID uint32, presented string) bool { return true })

	_, err = ClientHandshake(clientConn, func(ip string, key []byte) bool { return false }, 1, "test-psk")
	if err != ErrUnknownHostkey {
		t.Fatalf("expected ErrUnknownHostkey, got %v", err)
	}
}

func TestFrameTamperFailsDecryption(t *testing.T) {
	key := make([]byte, 32)
	aead, err := NewAEAD(key)
	if err != nil {
		t.Fatalf("new aead: %v", err)
	}

	var buf pipeBuffer
	if err := WriteFrame(&buf, aead, []byte("hello")); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	good := append([]byte(nil), buf.data...)
	if _, err := ReadFrame(&pipeBuffer{data: good}, aead); err != nil {
		t.Fatalf("expected clean decode, got %v", err)
	}

	tampered := append([]byte(nil), buf.data...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := ReadFrame(&pipeBuffer{data: tampered}, aead); err == nil {
		t.Fatalf("expected tamper to fail decryption")
	}
}

// pipeBuffer is a tiny io.Reader/io.Writer over an in-memory slice, used
// instead of bytes.Buffer so repeated ReadFrame calls in the tamper test
// each start from a fresh read cursor.
type pipeBuffer struct {
	data []byte
	off  int
}

func (p *pipeBuffer) Write(b []byte) (int, error) {
	p.data = append(p.data, b...)
	return len(b), nil
}

func (p *pipeBuffer) Read(b []byte) (int, error) {
	n := copy(b, p.data[p.off:])
	p.off += n
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
