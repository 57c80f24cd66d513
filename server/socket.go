package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	dispatch "github.com/bjaus/rpctoolkit"
	"github.com/bjaus/rpctoolkit/jsonrpc"
)

// requestLine is cheap to evaluate compared to a full jsonrpc.Request
// decode, so a connection that is fed junk (a stray newline, a client
// speaking the wrong protocol) never pays for a full unmarshal attempt.
var requestLine = dispatch.HasFields("method")

var lineInspector = dispatch.JSONInspector()

// ShutdownHandle stops a running RunSocket loop. Calling it more than
// once is safe.
type ShutdownHandle struct {
	once   sync.Once
	cancel context.CancelFunc
}

// Shutdown stops accepting new connections and cancels every in-flight
// Stream call.
func (h *ShutdownHandle) Shutdown() {
	h.once.Do(h.cancel)
}

// RunSocket accepts connections from listener and serves each one as a
// newline-delimited JSON-RPC stream: one request per line in, one
// response per line out, in completion order (see Server.Stream). The
// accept loop runs in the background until ctx is cancelled or the
// returned ShutdownHandle's Shutdown is called; RunSocket itself returns
// at once. The returned channel receives a non-cancellation Accept error,
// if one occurs, and is closed once the accept loop has stopped and every
// accepted connection has finished.
func (s *Server[C]) RunSocket(ctx context.Context, listener net.Listener, makeCtx func(net.Conn) (C, error)) (*ShutdownHandle, <-chan error) {
	runCtx, cancel := context.WithCancel(ctx)
	handle := &ShutdownHandle{cancel: cancel}
	done := make(chan error, 1)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(done)
		}()

		go func() {
			<-runCtx.Done()
			_ = listener.Close()
		}()

		for {
			conn, err := listener.Accept()
			if err != nil {
				if errors.Is(runCtx.Err(), context.Canceled) {
					return
				}
				done <- err
				return
			}
			c, err := makeCtx(conn)
			if err != nil {
				_ = conn.Close()
				continue
			}
			wg.Add(1)
			go func(conn net.Conn, c C) {
				defer wg.Done()
				defer conn.Close()
				_ = s.serveConn(runCtx, conn, c)
			}(conn, c)
		}
	}()

	return handle, done
}

// serveConn reads newline-delimited requests off conn and writes back
// newline-delimited responses as they complete, via Server.Stream.
func (s *Server[C]) serveConn(ctx context.Context, conn net.Conn, c C) error {
	in := make(chan jsonrpc.Request)
	out := make(chan jsonrpc.Response)

	streamErr := make(chan error, 1)
	go func() { streamErr <- s.Stream(ctx, c, in, out) }()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		enc := json.NewEncoder(conn)
		for resp := range out {
			if err := enc.Encode(resp); err != nil {
				return
			}
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		view, err := lineInspector.Inspect(line)
		if err != nil || !requestLine.Match(view) {
			continue // not a request line: drop it rather than pay for a full decode
		}
		var req jsonrpc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		select {
		case in <- req:
		case <-ctx.Done():
			close(in)
			<-writeDone
			return ctx.Err()
		}
	}
	close(in)
	<-writeDone
	return <-streamErr
}
