package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type EnvelopeSuite struct {
	suite.Suite
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) TestIDRoundTripsNumber() {
	id := NewNumberID(7)
	data, err := json.Marshal(id)
	s.Require().NoError(err)
	s.Assert().Equal("7", string(data))

	var got ID
	s.Require().NoError(json.Unmarshal(data, &got))
	s.Assert().False(got.IsZero())
}

func (s *EnvelopeSuite) TestIDRoundTripsString() {
	id := NewStringID("req-1")
	data, err := json.Marshal(id)
	s.Require().NoError(err)
	s.Assert().Equal(`"req-1"`, string(data))

	var got ID
	s.Require().NoError(json.Unmarshal(data, &got))
	s.Assert().False(got.IsZero())
}

func (s *EnvelopeSuite) TestIDUnmarshalsNullAsZero() {
	var got ID
	s.Require().NoError(json.Unmarshal([]byte("null"), &got))
	s.Assert().True(got.IsZero())
}

func (s *EnvelopeSuite) TestRequestIsNotificationWhenIDNil() {
	n := NewNotification("ping", nil)
	s.Assert().True(n.IsNotification())

	id := NewNumberID(1)
	r := NewRequest(id, "ping", nil)
	s.Assert().False(r.IsNotification())
}

func (s *EnvelopeSuite) TestSingleOrBatchSniffsSingleRequest() {
	var s1 SingleOrBatch
	err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), &s1)
	s.Require().NoError(err)
	s.Require().NotNil(s1.Single)
	s.Assert().False(s1.IsBatch())
	s.Assert().Equal("ping", s1.Single.Method)
}

func (s *EnvelopeSuite) TestSingleOrBatchSniffsBatch() {
	var s1 SingleOrBatch
	err := json.Unmarshal([]byte(`[{"jsonrpc":"2.0","id":1,"method":"a"},{"jsonrpc":"2.0","id":2,"method":"b"}]`), &s1)
	s.Require().NoError(err)
	s.Require().True(s1.IsBatch())
	s.Assert().Len(s1.Batch, 2)
}

func (s *EnvelopeSuite) TestSingleOrBatchRejectsEmptyBody() {
	var s1 SingleOrBatch
	err := json.Unmarshal([]byte(""), &s1)
	s.Assert().Error(err)
}

func (s *EnvelopeSuite) TestResponseOrBatchMarshalsBatchAsArray() {
	id := NewNumberID(1)
	r := ResponseOrBatch{Batch: []Response{NewResultResponse(id, []byte(`1`))}}
	data, err := json.Marshal(r)
	s.Require().NoError(err)
	s.Assert().Equal(byte('['), data[0])
}

func (s *EnvelopeSuite) TestResponseOrBatchMarshalsSingleAsObject() {
	id := NewNumberID(1)
	single := NewResultResponse(id, []byte(`1`))
	r := ResponseOrBatch{Single: &single}
	data, err := json.Marshal(r)
	s.Require().NoError(err)
	s.Assert().Equal(byte('{'), data[0])
}

func (s *EnvelopeSuite) TestErrorStringFormatting() {
	e := Error{Code: CodeMethodNotFound, Message: "method not found: ping"}
	s.Assert().Equal("jsonrpc: -32601 method not found: ping", e.Error())
}

func (s *EnvelopeSuite) TestNewErrorResponseAllowsNilID() {
	r := NewErrorResponse(nil, Error{Code: CodeParseError, Message: "bad json"})
	s.Assert().Nil(r.ID)
	s.Require().NotNil(r.Error)
	s.Assert().Equal(CodeParseError, r.Error.Code)
}
