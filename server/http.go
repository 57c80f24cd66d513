package server

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"

	"github.com/bjaus/rpctoolkit/jsonrpc"
	"github.com/fxamacker/cbor/v2"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
)

// StatusMapper derives the HTTP status code to write for a single JSON-RPC
// response, given its error object (nil on success).
type StatusMapper func(*jsonrpc.Error) int

// defaultStatusMapper writes 200 for every response, success or error
// alike — plain JSON-RPC-over-HTTP convention, unchanged until a caller
// opts into REST-ish status codes via WithStatusMapper.
func defaultStatusMapper(*jsonrpc.Error) int { return http.StatusOK }

type httpOptions struct {
	statusMapper StatusMapper
}

// HTTPOption configures HTTPHandler.
type HTTPOption func(*httpOptions)

// WithStatusMapper configures how a JSON-RPC error becomes the HTTP status
// code written for a response, e.g. mapping MethodNotFound to 404 and
// InvalidParams to 400. It is never consulted for a batch response, since
// a batch can mix successes and failures with no single status to report;
// batches always write 200.
func WithStatusMapper(fn StatusMapper) HTTPOption {
	return func(o *httpOptions) { o.statusMapper = fn }
}

// HTTPHandler returns an http.Handler that decodes a JSON-RPC request (or
// batch) from the body in whichever of application/json or
// application/cbor the request's Content-Type names, dispatches it through
// s, and writes back the response in the encoding the request's Accept
// header selects (JSON when it names neither) — the same two wire encodings the CLI's
// remote caller negotiates, so a server built from one Server[C] answers
// both transports without a second dispatch path.
func (s *Server[C]) HTTPHandler(makeCtx func(*http.Request) (C, error), opts ...HTTPOption) http.Handler {
	o := httpOptions{statusMapper: defaultStatusMapper}
	for _, opt := range opts {
		opt(&o)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		encoding := negotiate(r.Header.Get("Content-Type"))
		var jsonBody []byte
		if encoding == contentTypeCBOR {
			if jsonBody, err = cborToJSON(body); err != nil {
				http.Error(w, "malformed cbor body", http.StatusBadRequest)
				return
			}
		} else {
			jsonBody = body
		}

		c, err := makeCtx(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		resp, err := s.Handle(r.Context(), c, jsonBody)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		accept := negotiate(r.Header.Get("Accept"))
		out := resp
		if accept == contentTypeCBOR {
			if out, err = jsonToCBOR(resp); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", accept)
		w.WriteHeader(o.statusMapper(responseError(resp)))
		_, _ = w.Write(out)
	})
}

// responseError extracts the top-level error object from a single
// (non-batch) JSON-RPC response body, or nil if resp is a success
// response or a batch (batches have no single status to report).
func responseError(resp []byte) *jsonrpc.Error {
	if len(resp) == 0 || resp[0] != '{' {
		return nil
	}
	var probe struct {
		Error *jsonrpc.Error `json:"error"`
	}
	if err := json.Unmarshal(resp, &probe); err != nil {
		return nil
	}
	return probe.Error
}

// negotiate picks application/cbor when it appears anywhere in header,
// else defaults to application/json, matching the CLI remote caller's own
// accept-header construction in dispatch/remote.
func negotiate(header string) string {
	if header == "" {
		return contentTypeJSON
	}
	for _, want := range []string{contentTypeCBOR, contentTypeJSON} {
		if containsToken(header, want) {
			return want
		}
	}
	return contentTypeJSON
}

func containsToken(header, token string) bool {
	for i := 0; i+len(token) <= len(header); i++ {
		if header[i:i+len(token)] == token {
			return true
		}
	}
	return false
}

func cborToJSON(body []byte) ([]byte, error) {
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, err
	}
	var v any
	if err := dm.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func jsonToCBOR(body []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return cbor.Marshal(v)
}
