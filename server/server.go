// Package server drives a dispatch tree over JSON-RPC 2.0: single
// requests, batches, and a bounded-concurrency streaming transport where
// responses are written back in completion order rather than request
// order (see Stream).
package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bjaus/rpctoolkit"
	"github.com/bjaus/rpctoolkit/jsonrpc"
	"golang.org/x/sync/errgroup"
)

// Dispatcher resolves method against a dispatch tree bound to caller
// context c. Build one from a *dispatch.ParentHandler with
// dispatch.RootDispatcher.
type Dispatcher[C any] func(ctx context.Context, c C, method string, params dispatch.Value) (dispatch.Value, error)

// Server drives Dispatcher over the JSON-RPC transports: single request,
// batch, and streaming socket.
type Server[C any] struct {
	dispatch    Dispatcher[C]
	hooks       hooks
	concurrency int
}

// New creates a Server around dispatcher. concurrency bounds how many
// requests Stream and RunSocket will run at once; 0 means unbounded.
func New[C any](dispatcher Dispatcher[C], concurrency int, opts ...Option) *Server[C] {
	s := &Server[C]{dispatch: dispatcher, concurrency: concurrency}
	for _, opt := range opts {
		opt(&s.hooks)
	}
	return s
}

// HandleCommand resolves and invokes a single method call, translating
// any error into a well-formed *jsonrpc.Error.
func (s *Server[C]) HandleCommand(ctx context.Context, c C, method string, params dispatch.Value) (dispatch.Value, *jsonrpc.Error) {
	s.hooks.dispatch(ctx, method)
	start := time.Now()
	result, err := s.dispatch(ctx, c, method, params)
	duration := time.Since(start)
	if err != nil {
		s.hooks.failure(ctx, method, err, duration)
		de := dispatch.ToError(err)
		if de.Kind == dispatch.KindMethodNotFound {
			s.hooks.noHandler(ctx, method)
		}
		var data json.RawMessage
		if de.Data != nil {
			data = de.Data
		}
		return nil, &jsonrpc.Error{Code: de.RPCCode(), Message: de.Message, Data: data}
	}
	s.hooks.success(ctx, method, duration)
	return result, nil
}

// handleOne runs a single jsonrpc.Request and returns its Response.
// Notifications still run (their side effects matter) but the caller
// should discard the returned response per the protocol.
func (s *Server[C]) handleOne(ctx context.Context, c C, req jsonrpc.Request) jsonrpc.Response {
	result, rerr := s.HandleCommand(ctx, c, req.Method, dispatch.Value(req.Params))
	id := req.ID
	if id == nil {
		return jsonrpc.Response{}
	}
	if rerr != nil {
		return jsonrpc.NewErrorResponse(id, *rerr)
	}
	return jsonrpc.NewResultResponse(*id, json.RawMessage(result))
}

// Handle decodes body as either a single request or a batch, runs every
// entry, and encodes the response (or batch of responses). A batch entry
// whose handler fails yields an error response for that entry only, and
// the rest of the batch still runs. A body that does not decode — including
// a batch with any entry that is not a well-formed request object — yields
// one parse-error response for the whole body.
func (s *Server[C]) Handle(ctx context.Context, c C, body []byte) ([]byte, error) {
	var sob jsonrpc.SingleOrBatch
	if err := json.Unmarshal(body, &sob); err != nil {
		resp := jsonrpc.NewErrorResponse(nil, jsonrpc.Error{
			Code:    jsonrpc.CodeParseError,
			Message: err.Error(),
		})
		return json.Marshal(resp)
	}

	if !sob.IsBatch() {
		resp := s.handleOne(ctx, c, *sob.Single)
		if sob.Single.IsNotification() {
			return nil, nil
		}
		return json.Marshal(resp)
	}

	responses := make([]jsonrpc.Response, len(sob.Batch))
	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, req := range sob.Batch {
		i, req := i, req
		g.Go(func() error {
			responses[i] = s.handleOne(gctx, c, req)
			return nil
		})
	}
	_ = g.Wait()

	out := responses[:0]
	for _, r := range responses {
		if r.JSONRPC == "" {
			continue // notification, no response
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return json.Marshal(out)
}

// streamResult carries one completed response from its request goroutine
// to Stream's output loop.
type streamResult struct {
	response jsonrpc.Response
}

// Stream runs every request from in concurrently (bounded by the
// Server's concurrency) and sends each response to out as soon as it
// completes — in completion order, not request order. This is an
// intentional, spec-documented divergence from request ordering: a slow
// early request never blocks a fast later one from being written back
// first. Stream returns when in is closed and every in-flight request has
// completed, or when ctx is cancelled (which aborts all in-flight
// requests).
func (s *Server[C]) Stream(ctx context.Context, c C, in <-chan jsonrpc.Request, out chan<- jsonrpc.Response) error {
	defer close(out)

	results := make(chan streamResult)
	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var req jsonrpc.Request
			select {
			case r, ok := <-in:
				if !ok {
					return
				}
				req = r
			case <-ctx.Done():
				return
			}
			g.Go(func() error {
				resp := s.handleOne(gctx, c, req)
				if resp.JSONRPC != "" {
					select {
					case results <- streamResult{response: resp}:
					case <-gctx.Done():
					}
				}
				return nil
			})
		}
	}()

	go func() {
		<-done
		_ = g.Wait()
		close(results)
	}()

	for r := range results {
		select {
		case out <- r.response:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
