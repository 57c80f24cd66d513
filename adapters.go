package dispatch

import "context"

// noCliMarker is implemented by NoCli so NewDynHandler can detect it
// without needing a generic marker method parameterized over O.
type noCliMarker interface {
	isNoCli()
}

// noDisplayMarker is implemented by NoDisplay, parallel to noCliMarker.
type noDisplayMarker interface {
	isNoDisplay()
}

// customDisplayHandler is implemented by CustomDisplayFn; O is known
// statically at the NewDynHandler call site so this generic marker
// interface can be checked directly.
type customDisplayHandler[O any] interface {
	displayResult(O) error
}

// NoCli wraps h so it is excluded from CLI command generation while
// still being reachable over JSON-RPC. Use this for methods that only
// make sense programmatically (e.g. an internal health probe).
func NoCli[C, P, I, O any](h Handler[C, P, I, O]) Handler[C, P, I, O] {
	return &noCliHandler[C, P, I, O]{Handler: h}
}

type noCliHandler[C, P, I, O any] struct {
	Handler[C, P, I, O]
}

func (noCliHandler[C, P, I, O]) isNoCli() {}

// NoDisplay wraps h so its CLI invocation prints nothing on success. Use
// this for methods whose result is uninteresting to a human (e.g. a
// fire-and-forget command).
func NoDisplay[C, P, I, O any](h Handler[C, P, I, O]) Handler[C, P, I, O] {
	return &noDisplayHandler[C, P, I, O]{Handler: h}
}

type noDisplayHandler[C, P, I, O any] struct {
	Handler[C, P, I, O]
}

func (noDisplayHandler[C, P, I, O]) isNoDisplay() {}

// CustomDisplayFn wraps h with a custom CLI result printer, overriding
// both the default JSON pretty-printer and any Displayer the result type
// implements.
func CustomDisplayFn[C, P, I, O any](h Handler[C, P, I, O], display func(O) error) Handler[C, P, I, O] {
	return &customDisplayFnHandler[C, P, I, O]{Handler: h, display: display}
}

type customDisplayFnHandler[C, P, I, O any] struct {
	Handler[C, P, I, O]
	display func(O) error
}

func (h *customDisplayFnHandler[C, P, I, O]) displayResult(out O) error { return h.display(out) }

// CustomDisplay is sugar over CustomDisplayFn for the common case of
// delegating display to another type's method, e.g. a shared renderer:
//
//	dispatch.CustomDisplay(leaf, renderer.Render)
func CustomDisplay[C, P, I, O any](h Handler[C, P, I, O], display func(O) error) Handler[C, P, I, O] {
	return CustomDisplayFn(h, display)
}

// InheritanceHandler projects a subset of a parent's accumulated
// InheritedParams into the narrower view a child handler actually
// declared it needs, via project. This lets a deeply nested child depend
// on only the ancestor fields it uses instead of the full accumulated
// Flat chain.
type InheritanceHandler[C, P, IFull, INarrow, O any] struct {
	inner   Handler[C, P, INarrow, O]
	project func(IFull) INarrow
}

// WithInherited wraps h so it is invoked with project(full) in place of
// the full inherited-params record.
func WithInherited[C, P, IFull, INarrow, O any](h Handler[C, P, INarrow, O], project func(IFull) INarrow) Handler[C, P, IFull, O] {
	return &InheritanceHandler[C, P, IFull, INarrow, O]{inner: h, project: project}
}

func (h *InheritanceHandler[C, P, IFull, INarrow, O]) Handle(args HandlerArgs[C, P, IFull]) (O, error) {
	return h.inner.Handle(HandlerArgs[C, P, INarrow]{
		Ctx:          args.Ctx,
		Context:      args.Context,
		Params:       args.Params,
		ParentParams: h.project(args.ParentParams),
	})
}

func (h *InheritanceHandler[C, P, IFull, INarrow, O]) Metadata(method []string) Metadata {
	return h.inner.Metadata(method)
}

func (h *InheritanceHandler[C, P, IFull, INarrow, O]) MethodFromDots(name string) ([]string, bool) {
	return h.inner.MethodFromDots(name)
}

// RemoteCaller is the transport WithRemoteCall forwards through: when the
// calling context reports itself remote, a leaf wrapped this way
// serializes its own params, strips the fields the adapter itself
// introduced via Without, and hands the call to CallRemote.
type RemoteCaller[C, P, I, O any] interface {
	// CallRemote sends method with params to a remote peer and returns
	// its raw result; WithRemoteCall decodes that result into O.
	CallRemote(ctx context.Context, c C, method string, params Value) (Value, error)
}

// RemoteCallerFunc adapts a plain function to RemoteCaller.
type RemoteCallerFunc[C, P, I, O any] func(ctx context.Context, c C, method string, params Value) (Value, error)

func (f RemoteCallerFunc[C, P, I, O]) CallRemote(ctx context.Context, c C, method string, params Value) (Value, error) {
	return f(ctx, c, method, params)
}

// RemoteCapable is implemented by a context type that can tell a
// RemoteCaller-wrapped leaf, per call, whether this particular context
// should forward the call to a remote peer or run the wrapped handler
// locally. This is the single-context-type collapse of the original's
// EitherContext<Ctx, h::Context> sum: rather than a tree carrying two
// distinct context types depending on which branch of the Either it took,
// every node in the tree shares one concrete C, and that C reports its
// own remoteness at dispatch time.
type RemoteCapable interface {
	IsRemote() bool
}

// WithRemoteCall wraps h with dual-dispatch: when the call's Context
// reports IsRemote() true (it implements RemoteCapable and says so), the
// call is forwarded to caller instead of running h; otherwise h runs
// locally, exactly as if it had been registered unwrapped. This is what
// lets the same method name mean "ask the daemon" from a CLI process and
// "I am the daemon" inside the daemon's own dispatch, the transparent
// redirection spec.md's RemoteCaller<Ctx, h, Extra> describes as a sum
// over contexts.
//
// method is the fully-dotted remote method name used on the forwarding
// path. extra is marshaled alongside the leaf's own params and then
// stripped back out via Without before forwarding, the mechanism
// spec.md's without() operator exists for: it lets a local wrapper
// attach bookkeeping fields to P (e.g. a cache key) without leaking them
// to the remote peer. A context type that never implements RemoteCapable
// makes the wrapped handler equivalent to plain h: always local.
func WithRemoteCall[C, P, I, O any](method string, caller RemoteCaller[C, P, I, O], extra func(P) Value, h Handler[C, P, I, O]) Handler[C, P, I, O] {
	return &remoteCallHandler[C, P, I, O]{method: method, caller: caller, extra: extra, inner: h}
}

type remoteCallHandler[C, P, I, O any] struct {
	method string
	caller RemoteCaller[C, P, I, O]
	extra  func(P) Value
	inner  Handler[C, P, I, O]
}

func (h *remoteCallHandler[C, P, I, O]) Handle(args HandlerArgs[C, P, I]) (O, error) {
	var zero O
	rc, ok := any(args.Context).(RemoteCapable)
	if !ok || !rc.IsRemote() {
		return h.inner.Handle(args)
	}
	encoded, err := marshalValue(args.Params)
	if err != nil {
		return zero, InvalidParams(err)
	}
	if h.extra != nil {
		stripped, err := Without(encoded, h.extra(args.Params))
		if err != nil {
			return zero, err
		}
		encoded = stripped
	}
	ctx := args.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := h.caller.CallRemote(ctx, args.Context, h.method, encoded)
	if err != nil {
		return zero, TransportError(err)
	}
	var out O
	if err := unmarshalValue(result, &out); err != nil {
		return zero, ParseError(err)
	}
	return out, nil
}

func (h *remoteCallHandler[C, P, I, O]) Metadata(m []string) Metadata { return h.inner.Metadata(m) }

func (h *remoteCallHandler[C, P, I, O]) MethodFromDots(name string) ([]string, bool) {
	return h.inner.MethodFromDots(name)
}
