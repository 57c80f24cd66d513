package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/pflag"
)

// SubcommandMap holds a ParentHandler's children, keyed by name, plus an
// optional root-slot handler invoked when a path runs out of segments at
// this node. Insertion order is preserved for CLI listing.
type SubcommandMap[I any] struct {
	order []string
	byName map[string]DynHandler[I]
	root   *DynHandler[I]
}

// NewSubcommandMap creates an empty SubcommandMap.
func NewSubcommandMap[I any]() *SubcommandMap[I] {
	return &SubcommandMap[I]{byName: make(map[string]DynHandler[I])}
}

// Add registers h under name, or as the root slot if name is nil.
func (m *SubcommandMap[I]) Add(name Name, h DynHandler[I]) {
	if name == nil {
		m.root = &h
		return
	}
	if _, exists := m.byName[*name]; !exists {
		m.order = append(m.order, *name)
	}
	m.byName[*name] = h
}

func (m *SubcommandMap[I]) lookup(name string) (DynHandler[I], bool) {
	h, ok := m.byName[name]
	return h, ok
}

func (m *SubcommandMap[I]) rootHandler() (DynHandler[I], bool) {
	if m.root == nil {
		return DynHandler[I]{}, false
	}
	return *m.root, true
}

// ParentHandler routes a dotted method path to a child handler, threading
// its own params into the inherited-params chain every descendant sees
// via Flat. P is this node's own params type; I is the set of params
// already inherited from its ancestors; C is the application context
// type shared by this whole subtree.
type ParentHandler[C, P, I any] struct {
	meta     Metadata
	childMap *SubcommandMap[Flat[P, I]]
}

// NewParentHandler creates an empty ParentHandler ready for Subcommand
// and RootHandler registration.
func NewParentHandler[C, P, I any]() *ParentHandler[C, P, I] {
	return &ParentHandler[C, P, I]{childMap: NewSubcommandMap[Flat[P, I]]()}
}

// WithMetadata attaches static metadata to this node, unioned beneath
// every descendant's own metadata.
func (p *ParentHandler[C, P, I]) WithMetadata(meta Metadata) *ParentHandler[C, P, I] {
	p.meta = meta
	return p
}

// Subcommand registers a named child.
func (p *ParentHandler[C, P, I]) Subcommand(name string, h DynHandler[Flat[P, I]]) *ParentHandler[C, P, I] {
	p.childMap.Add(NewName(name), h)
	return p
}

// RootHandler registers the handler invoked when a path resolves to this
// node exactly (no further segments).
func (p *ParentHandler[C, P, I]) RootHandler(h DynHandler[Flat[P, I]]) *ParentHandler[C, P, I] {
	p.childMap.Add(nil, h)
	return p
}

// AsDynHandler erases this ParentHandler for insertion into an ancestor's
// SubcommandMap, or for use as the root of a CliApp/Server.
func (p *ParentHandler[C, P, I]) AsDynHandler() DynHandler[I] {
	return DynHandler[I]{erased: p}
}

// Dispatch resolves method against this node's tree and invokes the
// handler it names. method is the fully-dotted name; params is the raw
// request params object, reused unmodified at every level so each
// ancestor can decode its own declared fields out of the same object.
func (p *ParentHandler[C, P, I]) Dispatch(ctx context.Context, actx AnyContext, method string, params Value, inherited I) (Value, error) {
	segs := splitDots(method)
	if method == "" {
		segs = nil
	}
	return p.handle(ctx, actx, segs, params, inherited)
}

func (p *ParentHandler[C, P, I]) handle(ctx context.Context, actx AnyContext, method []string, params Value, inherited I) (Value, error) {
	var own P
	if err := unmarshalValue(params, &own); err != nil {
		return nil, InvalidParams(err)
	}
	if v, ok := any(own).(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, InvalidParams(err)
		}
	} else if v, ok := any(&own).(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, InvalidParams(err)
		}
	}
	if err := checkFlatCollision(own, inherited); err != nil {
		return nil, err
	}
	nextInherited := NewFlat(own, inherited)

	if len(method) == 0 {
		child, ok := p.childMap.rootHandler()
		if !ok {
			return nil, MethodNotFound("")
		}
		return child.erased.handle(ctx, actx, nil, params, nextInherited)
	}

	child, ok := p.childMap.lookup(method[0])
	if !ok {
		return nil, MethodNotFound(strings.Join(method, "."))
	}
	return child.erased.handle(ctx, actx, method[1:], params, nextInherited)
}

func (p *ParentHandler[C, P, I]) metadata(method []string) Metadata {
	if len(method) == 0 {
		if child, ok := p.childMap.rootHandler(); ok {
			return p.meta.Union(child.erased.metadata(nil))
		}
		return p.meta
	}
	if child, ok := p.childMap.lookup(method[0]); ok {
		return p.meta.Union(child.erased.metadata(method[1:]))
	}
	return p.meta
}

func (p *ParentHandler[C, P, I]) methodFromDots(name string) ([]string, bool) {
	if name == "" {
		return nil, true
	}
	return splitDots(name), true
}

// CLIBinding implements CLINode: a parent always participates in the CLI
// tree (there is no NoCli equivalent for a ParentHandler) and contributes
// its own flags when P implements CLIParams, but never a Display, since
// display belongs to whatever leaf the path ultimately resolves to.
func (p *ParentHandler[C, P, I]) CLIBinding() (CLIBinding, bool) {
	return CLIBinding{
		RegisterFlags: func(fs *pflag.FlagSet) func() (Value, error) {
			np := new(P)
			if cp, ok := any(np).(CLIParams); ok {
				cp.RegisterFlags(fs)
			}
			return func() (Value, error) {
				v, err := json.Marshal(np)
				if err != nil {
					return nil, InvalidParams(err)
				}
				return v, nil
			}
		},
	}, true
}

// CLIChildren implements CLINode: one entry per SubcommandMap entry, in
// registration order.
func (p *ParentHandler[C, P, I]) CLIChildren() []CLIChild {
	out := make([]CLIChild, 0, len(p.childMap.order))
	for _, name := range p.childMap.order {
		h, _ := p.childMap.lookup(name)
		if cn, ok := h.erased.(CLINode); ok {
			n := name
			out = append(out, CLIChild{Name: NewName(n), Node: cn})
		}
	}
	return out
}

// CLIRoot implements CLINode: if a RootHandler was registered, it runs
// when this node's command is invoked with no further subcommand — its
// flags merge onto this node's own flag set.
func (p *ParentHandler[C, P, I]) CLIRoot() (CLINode, bool) {
	h, ok := p.childMap.rootHandler()
	if !ok {
		return nil, false
	}
	cn, ok := h.erased.(CLINode)
	return cn, ok
}
