// Package dispatch builds a single handler tree that serves both a
// JSON-RPC 2.0 API and a CLI from the same method registrations.
//
// A dispatch tree is made of two kinds of node: a leaf built with FromFn,
// and a ParentHandler that routes a dotted method name (e.g.
// "user.create") down to one of its children. Both implement Handler, so
// the tree composes to arbitrary depth.
//
// # Quick Start
//
// Define params, a result, and a leaf handler:
//
//	type CreateParams struct {
//	    Email string `json:"email"`
//	}
//
//	type CreateResult struct {
//	    ID string `json:"id"`
//	}
//
//	create := dispatch.FromFn(func(args dispatch.HandlerArgs[*App, CreateParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]) (CreateResult, error) {
//	    id, err := args.Context.Users.Create(args.Ctx, args.Params.Email)
//	    return CreateResult{ID: id}, err
//	})
//
// Attach it under a ParentHandler and erase it into a DynHandler:
//
//	users := dispatch.NewParentHandler[*App, dispatch.Empty, dispatch.Empty]()
//	users.Subcommand("create", dispatch.NewDynHandler[*App, CreateParams, dispatch.Flat[dispatch.Empty, dispatch.Empty], CreateResult](create))
//
// Bind the tree to a context type and dispatch a method:
//
//	dispatcher := dispatch.RootDispatcher(users, dispatch.Empty{})
//	result, err := dispatcher(ctx, app, "create", json.RawMessage(`{"email":"a@b.com"}`))
//
// dispatch/server wraps this exact function as a JSON-RPC server;
// dispatch/cli wraps dispatch.RootCLINode(users) as a cobra command tree
// driving the same dispatcher.
//
// # Params, results, and inherited params
//
// Handler is generic over four types: C (the caller-supplied application
// context, shared by the whole tree), P (this handler's own params), I
// (the params inherited from every ancestor, flattened into one record),
// and O (the result). A ParentHandler decodes its own P out of the same
// raw params object every descendant sees, then combines it into the I
// its children receive via Flat — so a child never has to know how deep
// it sits in the tree, only which of its ancestors' fields it needs.
//
// Flat[A, B] rejects params whose JSON field names collide: an ancestor
// and a descendant can never declare the same field name, since the
// merge would otherwise have to pick a winner silently.
//
// # Adapters
//
// A leaf built with FromFn can be wrapped before being erased into a
// DynHandler:
//
//   - NoCli / NoDisplay: opt out of CLI generation, or suppress result
//     printing, while still being reachable over JSON-RPC
//   - CustomDisplayFn: override how the CLI prints a successful result
//   - WithInherited: narrow a deeply-nested child's view of I to just
//     the ancestor fields it actually uses
//   - WithRemoteCall: dual-dispatch a leaf between its own local logic
//     and a call-out to a remote peer (see dispatch/remote), depending on
//     whether the calling Context reports itself RemoteCapable, stripping
//     any locally-added Extra fields via Without before forwarding
//   - Blocking / Local: run a leaf on a bounded worker pool or a single
//     pinned goroutine, for handlers wrapping blocking or non-thread-safe
//     dependencies
//
// # Errors
//
// Every layer returns *dispatch.Error, classified by Kind into the
// standard JSON-RPC 2.0 error codes (KindParse, KindInvalidRequest,
// KindMethodNotFound, KindInvalidParams, KindInternal) plus KindUser for
// application-defined codes and KindTransport for remote call-out or
// socket failures. ToError classifies any error at a transport boundary,
// defaulting unrecognized errors to KindInternal.
//
// # Request classification
//
// dispatch/server's socket transport uses the same Discriminator/
// Inspector/View pair this package exposes for cheap pre-decode checks —
// here, confirming a newline looks like a JSON-RPC request object before
// paying for a full jsonrpc.Request unmarshal.
package dispatch
