package dispatch

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type FromFnSuite struct {
	suite.Suite
}

func TestFromFnSuite(t *testing.T) {
	suite.Run(t, new(FromFnSuite))
}

func (s *FromFnSuite) TestCallsFnDirectly() {
	h := FromFn(func(args HandlerArgs[string, pingParams, Empty]) (pingResult, error) {
		return pingResult{Greeting: "hi " + args.Params.Name}, nil
	})
	out, err := h.Handle(HandlerArgs[string, pingParams, Empty]{
		Ctx:    context.Background(),
		Params: pingParams{Name: "bob"},
	})
	s.Require().NoError(err)
	s.Assert().Equal("hi bob", out.Greeting)
}

func (s *FromFnSuite) TestWithMetadataAttachesWithoutMutatingOriginal() {
	plain := FromFn(func(args HandlerArgs[string, Empty, Empty]) (Empty, error) { return Empty{}, nil })
	tagged := WithMetadata(plain, Metadata{"k": Value(`"v"`)})

	s.Assert().Nil(plain.Metadata(nil))
	s.Assert().Equal(Value(`"v"`), tagged.Metadata(nil)["k"])
}

func (s *FromFnSuite) TestBlockingPoolBoundsConcurrency() {
	pool := NewBlockingPool(1)
	h := Blocking(pool, FromFn(func(args HandlerArgs[string, Empty, Empty]) (Empty, error) {
		time.Sleep(10 * time.Millisecond)
		return Empty{}, nil
	}))

	start := time.Now()
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = h.Handle(HandlerArgs[string, Empty, Empty]{Ctx: context.Background()})
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	s.Assert().GreaterOrEqual(time.Since(start), 20*time.Millisecond)
}

func (s *FromFnSuite) TestBlockingPoolCancelledContextReturnsTransportError() {
	pool := NewBlockingPool(0)
	h := Blocking(pool, FromFn(func(args HandlerArgs[string, Empty, Empty]) (Empty, error) { return Empty{}, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Handle(HandlerArgs[string, Empty, Empty]{Ctx: ctx})
	s.Require().Error(err)

	de, ok := AsError(err)
	s.Require().True(ok)
	s.Assert().Equal(KindTransport, de.Kind)
}

func (s *FromFnSuite) TestLocalPoolRunsOnSingleGoroutine() {
	pool := NewLocalPool()
	defer pool.Close()

	var goroutineIDs = make(chan string, 3)
	h := Local(pool, FromFn(func(args HandlerArgs[string, Empty, Empty]) (Empty, error) {
		buf := make([]byte, 64)
		buf = buf[:runtime.Stack(buf, false)]
		goroutineIDs <- strings.Fields(string(buf))[1]
		return Empty{}, nil
	}))

	for i := 0; i < 3; i++ {
		_, err := h.Handle(HandlerArgs[string, Empty, Empty]{Ctx: context.Background()})
		s.Require().NoError(err)
	}
	close(goroutineIDs)
	count := 0
	seen := map[string]bool{}
	for id := range goroutineIDs {
		seen[id] = true
		count++
	}
	s.Assert().Equal(3, count)
	s.Assert().Len(seen, 1)
}

func (s *FromFnSuite) TestLocalPoolPropagatesHandlerError() {
	pool := NewLocalPool()
	defer pool.Close()

	boom := errors.New("boom")
	h := Local(pool, FromFn(func(args HandlerArgs[string, Empty, Empty]) (Empty, error) {
		return Empty{}, boom
	}))

	_, err := h.Handle(HandlerArgs[string, Empty, Empty]{Ctx: context.Background()})
	s.Assert().ErrorIs(err, boom)
}
