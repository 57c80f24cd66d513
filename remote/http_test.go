package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	dispatch "github.com/bjaus/rpctoolkit"
	"github.com/bjaus/rpctoolkit/jsonrpc"
)

type HTTPCallerSuite struct {
	suite.Suite
}

func TestHTTPCallerSuite(t *testing.T) {
	suite.Run(t, new(HTTPCallerSuite))
}

func (s *HTTPCallerSuite) newEchoServer(expectCBOR bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expectCBOR {
			s.Assert().Equal("application/cbor", r.Header.Get("Content-Type"))
		} else {
			s.Assert().Equal("application/json", r.Header.Get("Content-Type"))
		}

		var req jsonrpc.Request
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))

		id := jsonrpc.NewNumberID(0)
		resp := jsonrpc.NewResultResponse(id, json.RawMessage(`"pong"`))
		w.Header().Set("Content-Type", "application/json")
		s.Require().NoError(json.NewEncoder(w).Encode(resp))
	}))
}

func (s *HTTPCallerSuite) TestCallRemoteSendsJSONAndDecodesResult() {
	srv := s.newEchoServer(false)
	defer srv.Close()

	caller := HTTPCaller[string]{URL: srv.URL}
	out, err := caller.CallRemote(context.Background(), "app", "ping", dispatch.Value(`{}`))
	s.Require().NoError(err)
	s.Assert().Equal(`"pong"`, string(out))
}

func (s *HTTPCallerSuite) TestCallRemoteTranslatesPeerErrorResponse() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := jsonrpc.NewErrorResponse(nil, jsonrpc.Error{Code: 1001, Message: "denied"})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	caller := HTTPCaller[string]{URL: srv.URL}
	_, err := caller.CallRemote(context.Background(), "app", "ping", dispatch.Value(`{}`))
	s.Require().Error(err)

	de, ok := dispatch.AsError(err)
	s.Require().True(ok)
	s.Assert().Equal(1001, de.RPCCode())
	s.Assert().Equal("denied", de.Message)
}

func (s *HTTPCallerSuite) TestCallRemotePreferCBORSetsHeadersAndRoundTrips() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Assert().Equal("application/cbor", r.Header.Get("Content-Type"))

		jsonResp, err := json.Marshal(jsonrpc.NewResultResponse(jsonrpc.NewNumberID(0), json.RawMessage(`"pong"`)))
		s.Require().NoError(err)
		cborResp, err := jsonToCBOR(jsonResp)
		s.Require().NoError(err)

		w.Header().Set("Content-Type", "application/cbor")
		_, _ = w.Write(cborResp)
	}))
	defer srv.Close()

	caller := HTTPCaller[string]{URL: srv.URL, PreferCBOR: true}
	out, err := caller.CallRemote(context.Background(), "app", "ping", dispatch.Value(`{}`))
	s.Require().NoError(err)
	s.Assert().Equal(`"pong"`, string(out))
}
