package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dispatch "github.com/bjaus/rpctoolkit"
	"github.com/bjaus/rpctoolkit/jsonrpc"
)

type echoParams struct {
	Value  string `json:"value"`
	DelayMs int   `json:"delay_ms"`
}

func echoDispatcher(ctx context.Context, c string, method string, params dispatch.Value) (dispatch.Value, error) {
	if method == "fail" {
		return nil, dispatch.InvalidParams(nil)
	}
	if method == "missing" {
		return nil, dispatch.MethodNotFound(method)
	}
	var p echoParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, dispatch.ParseError(err)
		}
	}
	if p.DelayMs > 0 {
		select {
		case <-time.After(time.Duration(p.DelayMs) * time.Millisecond):
		case <-ctx.Done():
			return nil, dispatch.TransportError(ctx.Err())
		}
	}
	return json.Marshal(p.Value)
}

type ServerSuite struct {
	suite.Suite
	srv *Server[string]
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.srv = New[string](echoDispatcher, 4)
}

func (s *ServerSuite) TestHandleSingleRequest() {
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"value":"hi"}}`)
	out, err := s.srv.Handle(context.Background(), "app", body)
	s.Require().NoError(err)

	var resp jsonrpc.Response
	s.Require().NoError(json.Unmarshal(out, &resp))
	s.Assert().Nil(resp.Error)
	s.Assert().Equal(`"hi"`, string(resp.Result))
}

func (s *ServerSuite) TestHandleNotificationProducesNoResponse() {
	body := []byte(`{"jsonrpc":"2.0","method":"echo","params":{"value":"hi"}}`)
	out, err := s.srv.Handle(context.Background(), "app", body)
	s.Require().NoError(err)
	s.Assert().Nil(out)
}

func (s *ServerSuite) TestHandleSingleRequestErrorEncodesJSONRPCError() {
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"fail"}`)
	out, err := s.srv.Handle(context.Background(), "app", body)
	s.Require().NoError(err)

	var resp jsonrpc.Response
	s.Require().NoError(json.Unmarshal(out, &resp))
	s.Require().NotNil(resp.Error)
	s.Assert().Equal(jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func (s *ServerSuite) TestHandleBatchIsolatesPerEntryFailure() {
	body := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"echo","params":{"value":"ok"}},
		{"jsonrpc":"2.0","id":2,"method":"fail"}
	]`)
	out, err := s.srv.Handle(context.Background(), "app", body)
	s.Require().NoError(err)

	var resps []jsonrpc.Response
	s.Require().NoError(json.Unmarshal(out, &resps))
	s.Require().Len(resps, 2)

	byID := map[string]jsonrpc.Response{}
	for _, r := range resps {
		var idStr string
		idBytes, _ := json.Marshal(r.ID)
		idStr = string(idBytes)
		byID[idStr] = r
	}
	s.Assert().Nil(byID["1"].Error)
	s.Assert().Equal(`"ok"`, string(byID["1"].Result))
	s.Require().NotNil(byID["2"].Error)
	s.Assert().Equal(jsonrpc.CodeInvalidParams, byID["2"].Error.Code)
}

func (s *ServerSuite) TestHandleMalformedBodyReturnsParseError() {
	out, err := s.srv.Handle(context.Background(), "app", []byte("not json"))
	s.Require().NoError(err)

	var resp jsonrpc.Response
	s.Require().NoError(json.Unmarshal(out, &resp))
	s.Require().NotNil(resp.Error)
	s.Assert().Equal(jsonrpc.CodeParseError, resp.Error.Code)
}

func (s *ServerSuite) TestStreamReturnsInCompletionOrderNotRequestOrder() {
	in := make(chan jsonrpc.Request, 2)
	out := make(chan jsonrpc.Response, 2)

	slowID := jsonrpc.NewNumberID(1)
	fastID := jsonrpc.NewNumberID(2)
	in <- jsonrpc.NewRequest(slowID, "echo", json.RawMessage(`{"value":"slow","delay_ms":40}`))
	in <- jsonrpc.NewRequest(fastID, "echo", json.RawMessage(`{"value":"fast","delay_ms":1}`))
	close(in)

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Stream(context.Background(), "app", in, out) }()

	var got []jsonrpc.Response
	for r := range out {
		got = append(got, r)
	}
	s.Require().NoError(<-errCh)
	s.Require().Len(got, 2)
	s.Assert().Equal(`"fast"`, string(got[0].Result))
	s.Assert().Equal(`"slow"`, string(got[1].Result))
}

func (s *ServerSuite) TestHooksFireOnDispatchSuccessAndFailure() {
	var dispatched, succeeded, failed []string
	srv := New[string](echoDispatcher, 0,
		WithOnDispatch(func(_ context.Context, method string) { dispatched = append(dispatched, method) }),
		WithOnSuccess(func(_ context.Context, method string, _ time.Duration) { succeeded = append(succeeded, method) }),
		WithOnFailure(func(_ context.Context, method string, _ error, _ time.Duration) { failed = append(failed, method) }),
	)

	_, _ = srv.HandleCommand(context.Background(), "app", "echo", json.RawMessage(`{"value":"x"}`))
	_, _ = srv.HandleCommand(context.Background(), "app", "fail", nil)

	s.Assert().Equal([]string{"echo", "fail"}, dispatched)
	s.Assert().Equal([]string{"echo"}, succeeded)
	s.Assert().Equal([]string{"fail"}, failed)
}

func (s *ServerSuite) TestOnNoHandlerFiresOnlyForMethodNotFound() {
	var noHandler, failed []string
	srv := New[string](echoDispatcher, 0,
		WithOnFailure(func(_ context.Context, method string, _ error, _ time.Duration) { failed = append(failed, method) }),
		WithOnNoHandler(func(_ context.Context, method string) { noHandler = append(noHandler, method) }),
	)

	_, _ = srv.HandleCommand(context.Background(), "app", "fail", nil)
	_, _ = srv.HandleCommand(context.Background(), "app", "missing", nil)

	s.Assert().Equal([]string{"fail", "missing"}, failed, "every failure still fires OnFailure")
	s.Assert().Equal([]string{"missing"}, noHandler, "OnNoHandler fires only for MethodNotFound")
}
