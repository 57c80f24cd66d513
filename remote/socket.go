package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	dispatch "github.com/bjaus/rpctoolkit"
	"github.com/bjaus/rpctoolkit/jsonrpc"
)

// SocketCaller implements dispatch.RemoteCaller[C, ...] for any C over a
// newline-delimited JSON-RPC connection: one request line out, one
// response line read back. Dial is called fresh for every CallRemote so
// the caller never has to manage connection lifetime or reconnects.
type SocketCaller[C any] struct {
	Dial func(ctx context.Context) (net.Conn, error)
}

// CallRemote sends method/params as a single JSON-RPC request (id 0)
// over a fresh connection and reads back the matching response line.
func (s SocketCaller[C]) CallRemote(ctx context.Context, _ C, method string, params dispatch.Value) (dispatch.Value, error) {
	conn, err := s.Dial(ctx)
	if err != nil {
		return nil, dispatch.TransportError(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := jsonrpc.NewRequest(jsonrpc.NewNumberID(0), method, json.RawMessage(params))
	line, err := json.Marshal(req)
	if err != nil {
		return nil, dispatch.Internal(err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, dispatch.TransportError(err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, dispatch.TransportError(err)
		}
		return nil, dispatch.TransportError(context.Canceled)
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, dispatch.ParseError(err)
	}
	if resp.Error != nil {
		return nil, dispatch.UserErrorf(resp.Error.Code, dispatch.Value(resp.Error.Data), "%s", resp.Error.Message)
	}
	return dispatch.Value(resp.Result), nil
}
