package dispatch

import "context"

// RootDispatcher binds root to a concrete C, producing a plain
// (ctx, c, method, params) -> (Value, error) function suitable for
// dispatch/server.New and dispatch/cli.New, which otherwise know nothing
// about root's own P/I type parameters. zeroInherited is the inherited-
// params value passed to root's top-level children — typically
// Empty{} for a root with no ancestors of its own.
func RootDispatcher[C, P, I any](root *ParentHandler[C, P, I], zeroInherited I) func(ctx context.Context, c C, method string, params Value) (Value, error) {
	return func(ctx context.Context, c C, method string, params Value) (Value, error) {
		return root.Dispatch(ctx, NewAnyContext(c), method, params, zeroInherited)
	}
}

// RootCLINode exposes root's CLI tree-walking surface for dispatch/cli.New.
func RootCLINode[C, P, I any](root *ParentHandler[C, P, I]) CLINode {
	return root
}
