package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/pflag"
)

var errContextMismatch = errors.New("handler context type mismatch")

// defaultDisplay is the fallback CLI display for a result with no
// Displayer implementation: pretty-printed JSON to stdout.
func defaultDisplay(v Value) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, v, "", "  "); err != nil {
		fmt.Println(string(v))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

// AnyContext carries a type-erased application context plus its concrete
// type, so a ParentHandler's SubcommandMap can hold children without
// naming their context type. Each child checks the caller's context
// against its own C at dispatch time; a child whose C does not match
// fails with an Internal error rather than being skipped.
type AnyContext struct {
	value any
	typ   reflect.Type
}

// NewAnyContext erases v's concrete type.
func NewAnyContext(v any) AnyContext {
	return AnyContext{value: v, typ: reflect.TypeOf(v)}
}

// As attempts to recover a concrete C from a. It returns the zero value
// and false if a does not hold exactly type C.
func As[C any](a AnyContext) (C, bool) {
	var zero C
	if a.value == nil {
		return zero, false
	}
	c, ok := a.value.(C)
	return c, ok
}

// CLIParams is implemented by a leaf's Params type (on a pointer
// receiver) to participate in CLI argument parsing. This is the
// derive-macro substitute: instead of a #[derive(Parser)] expansion, the
// type itself registers its own flags.
type CLIParams interface {
	RegisterFlags(fs *pflag.FlagSet)
}

// Displayer is implemented by a leaf's result type to control how the CLI
// driver prints a successful result. Results that do not implement
// Displayer are printed as indented JSON.
type Displayer interface {
	Display() error
}

// erasedHandler is the type-erased runtime shape every DynHandler wraps
// for JSON-RPC dispatch. I is still generic: it is the inherited-params
// type at this point in the tree, which differs at every nesting depth as
// Flat accumulates ancestors, exactly as the original's
// DynHandler<Inherited> enum does.
type erasedHandler[I any] interface {
	handle(ctx context.Context, actx AnyContext, method []string, params Value, inherited I) (Value, error)
	metadata(method []string) Metadata
	methodFromDots(name string) ([]string, bool)
}

// CLINode is the type-erased runtime shape every DynHandler ALSO offers
// for CLI tree construction. Unlike erasedHandler, CLINode carries no
// Inherited type parameter: CLI composition works entirely over Value,
// merged with Combine at dispatch time rather than threaded through
// static generics — the same split the original draws between its
// RPC-side DynHandler<Inherited> and its CLI-side DynCommand. Every
// concrete node (anyHandler, ParentHandler) implements both interfaces;
// which one a caller uses depends on whether it is walking the RPC tree
// or the CLI tree.
type CLINode interface {
	// CLIBinding returns this node's own flag registration and result
	// display, or false if it opts out of CLI participation entirely
	// (a NoCli leaf). A node whose Params does not implement CLIParams
	// still participates — RegisterFlags just contributes no flags.
	CLIBinding() (CLIBinding, bool)

	// CLIChildren returns this node's named CLI subcommands. Leaves
	// return nil; ParentHandler returns one entry per SubcommandMap entry.
	CLIChildren() []CLIChild

	// CLIRoot returns the node that should run when this one is invoked
	// with no further subcommand, if any. A leaf always returns false (it
	// has no root slot of its own — it IS the slot). A ParentHandler
	// returns its RootHandler, if one was registered.
	CLIRoot() (CLINode, bool)
}

// CLIBinding is the CLI-facing half of a node: everything the CLI driver
// needs to add a flag set, parse it into params, and dispatch.
type CLIBinding struct {
	RegisterFlags func(fs *pflag.FlagSet) func() (Value, error)
	Display       func(Value) error
}

// CLIChild names one entry in a parent's CLI subcommand list.
type CLIChild struct {
	Name Name
	Node CLINode
}

// DynHandler is a type-erased handler stored in a SubcommandMap. It is
// the Go analogue of the original's DynHandler<Inherited> enum, collapsed
// to a struct since Go interfaces already provide the erasure.
type DynHandler[I any] struct {
	erased erasedHandler[I]
}

// anyHandler is the generic implementation backing every DynHandler. It
// decodes a Value into P, matches the caller's AnyContext against C,
// calls the wrapped Handler, and re-encodes its O back into a Value.
type anyHandler[C, P, I, O any] struct {
	inner     Handler[C, P, I, O]
	noCli     bool
	displayFn func(O) error
	noDisplay bool
}

// NewDynHandler erases a concrete Handler[C,P,I,O] into a DynHandler[I].
// It inspects h for the NoCli/NoDisplay/CustomDisplayFn adapter markers
// and carries their effect into the erased form, since those adapters
// wrap a Handler rather than a DynHandler.
func NewDynHandler[C, P, I, O any](h Handler[C, P, I, O]) DynHandler[I] {
	ah := &anyHandler[C, P, I, O]{
		inner: h,
	}
	if _, ok := any(h).(noCliMarker); ok {
		ah.noCli = true
	}
	if _, ok := any(h).(noDisplayMarker); ok {
		ah.noDisplay = true
	}
	if cd, ok := any(h).(customDisplayHandler[O]); ok {
		ah.displayFn = cd.displayResult
	}
	return DynHandler[I]{erased: ah}
}

func (h *anyHandler[C, P, I, O]) handle(ctx context.Context, actx AnyContext, method []string, params Value, inherited I) (Value, error) {
	c, ok := As[C](actx)
	if !ok {
		return nil, Internal(errContextMismatch)
	}
	var p P
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, InvalidParams(err)
		}
	}
	if v, ok := any(p).(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, InvalidParams(err)
		}
	} else if v, ok := any(&p).(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, InvalidParams(err)
		}
	}
	if err := checkFlatCollision(p, inherited); err != nil {
		return nil, err
	}
	out, err := h.inner.Handle(HandlerArgs[C, P, I]{
		Ctx:          ctx,
		Context:      c,
		Params:       p,
		ParentParams: inherited,
	})
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, Internal(err)
	}
	_ = method
	return encoded, nil
}

func (h *anyHandler[C, P, I, O]) metadata(method []string) Metadata {
	return h.inner.Metadata(method)
}

func (h *anyHandler[C, P, I, O]) methodFromDots(name string) ([]string, bool) {
	return h.inner.MethodFromDots(name)
}

// CLIBinding implements CLINode. A leaf always participates in the CLI
// tree unless explicitly opted out via NoCli — Params not implementing
// CLIParams just means it contributes no flags of its own, not that it
// is unreachable from the command line.
func (h *anyHandler[C, P, I, O]) CLIBinding() (CLIBinding, bool) {
	if h.noCli {
		return CLIBinding{}, false
	}
	return CLIBinding{
		RegisterFlags: func(fs *pflag.FlagSet) func() (Value, error) {
			p := new(P)
			if cp, ok := any(p).(CLIParams); ok {
				cp.RegisterFlags(fs)
			}
			return func() (Value, error) {
				v, err := json.Marshal(p)
				if err != nil {
					return nil, InvalidParams(err)
				}
				return v, nil
			}
		},
		Display: func(v Value) error {
			if h.noDisplay {
				return nil
			}
			if h.displayFn != nil {
				var out O
				if err := json.Unmarshal(v, &out); err != nil {
					return Internal(err)
				}
				return h.displayFn(out)
			}
			var out O
			if err := json.Unmarshal(v, &out); err != nil {
				return Internal(err)
			}
			if d, ok := any(out).(Displayer); ok {
				return d.Display()
			}
			return defaultDisplay(v)
		},
	}, true
}

// CLIChildren is always empty for a leaf.
func (h *anyHandler[C, P, I, O]) CLIChildren() []CLIChild { return nil }

// CLIRoot is always false for a leaf: a leaf has no root slot beneath it,
// it is one.
func (h *anyHandler[C, P, I, O]) CLIRoot() (CLINode, bool) { return nil, false }
