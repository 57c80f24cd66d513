package dispatch

import "context"

// Empty is the params or inherited-params type for a handler that needs
// none. It serializes to nothing (an absent set of fields) and never
// collides with anything else in a Flat merge.
type Empty struct{}

// Name identifies a child in a SubcommandMap. nil names the root slot: the
// handler invoked when a ParentHandler's path runs out of segments.
type Name = *string

// NewName returns a non-nil Name for s.
func NewName(s string) Name {
	return &s
}

// Metadata is free-form, JSON-encodable information about a method,
// collected bottom-up as a path resolves: a child's metadata entries take
// precedence over its ancestors' when keys collide.
type Metadata map[string]Value

// Union merges m with child, with child's entries winning on key
// collision — the nearer node to the leaf always has the final say.
func (m Metadata) Union(child Metadata) Metadata {
	out := make(Metadata, len(m)+len(child))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

// HandlerArgs is what a leaf handler actually receives: the ambient
// context for cancellation, the caller-supplied application context, the
// handler's own typed params, and the params inherited from every
// ancestor in the path, flattened into a single record.
type HandlerArgs[C, P, I any] struct {
	Ctx          context.Context
	Context      C
	Params       P
	ParentParams I
}

// Handler is the one interface every node in a dispatch tree implements,
// whether it is a leaf built with FromFn or a ParentHandler routing to
// children. C is the caller-supplied application context type, P the
// handler's own params, I the params inherited from its ancestors, O its
// result.
type Handler[C, P, I, O any] interface {
	// Handle executes the method. Implementations that need to run on a
	// bounded worker pool or a pinned goroutine do so internally (see
	// BlockingPool, LocalPool); from the caller's point of view this is
	// always a single blocking call.
	Handle(args HandlerArgs[C, P, I]) (O, error)

	// Metadata returns this handler's contribution to the metadata union
	// for the given fully-resolved method path.
	Metadata(method []string) Metadata

	// MethodFromDots splits name into the path segments this handler's
	// subtree understands, returning false if name does not belong to it.
	MethodFromDots(name string) ([]string, bool)
}
