package master

import (
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/channel"
	"github.com/shipcluster/server/internal/masterproto"
)

// Server accepts ship connections, performs the secure channel handshake,
// and serves masterproto requests over each resulting session until the
// ship disconnects.
type Server struct {
	id         *channel.HostIdentity
	dispatcher *Dispatcher
	log        *zap.Logger
	verifyPSK  channel.VerifyPSK
}

func NewServer(id *channel.HostIdentity, dispatcher *Dispatcher, log *zap.Logger) *Server {
	s := &Server{id: id, dispatcher: dispatcher, log: log}
	s.verifyPSK = func(shipID uint32, presented string) bool {
		return dispatcher.VerifyShipPSK(context.Background(), shipID, presented)
	}
	return s
}

// Run accepts connections on ln until ctx is canceled or the listener
// fails. Each accepted connection is handled on its own goroutine so one
// slow or stalled ship cannot hold up registration of another.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	secured, err := channel.ServerHandshake(conn, s.id, s.verifyPSK)
	if err != nil {
		s.log.Warn("ship handshake failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		return
	}

	sess := channel.NewSession(conn, secured, 0)
	s.log.Info("ship connected", zap.String("remote", conn.RemoteAddr().String()))

	for {
		if ctx.Err() != nil {
			return
		}
		var env masterproto.Envelope
		if err := sess.Recv(&env); err != nil {
			if !isExpectedDisconnect(err) {
				s.log.Warn("ship session read failed", zap.Error(err))
			}
			return
		}

		result, err := s.dispatcher.Dispatch(ctx, env.Action)
		if err != nil {
			s.log.Error("dispatch failed", zap.Uint32("id", env.ID), zap.Error(err))
			result = masterproto.Error{Message: "internal error"}
		}

		reply := masterproto.Envelope{ID: env.ID, Result: result}
		if err := sess.Send(&reply); err != nil {
			s.log.Warn("ship session write failed", zap.Error(err))
			return
		}
	}
}

func isExpectedDisconnect(err error) bool {
	return errors.Is(err, channel.ErrTimeout) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
