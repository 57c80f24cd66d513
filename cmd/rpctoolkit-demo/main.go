// Command rpctoolkit-demo wires up a small handler tree that exercises
// nested routing, inherited params, a root-slot handler, and a
// dual-dispatch leaf that runs locally or forwards to a remote peer
// depending on its calling context, then drives it three ways: as a
// CLI, as a JSON-RPC HTTP server, or as a standalone client calling that
// server over remote.HTTPCaller.
//
// Run it:
//
//	rpctoolkit-demo cli group thing1 --thing ab
//	rpctoolkit-demo serve :8080
//	rpctoolkit-demo call http://localhost:8080/rpc hello '{"whom":"you"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	dispatch "github.com/bjaus/rpctoolkit"
	"github.com/bjaus/rpctoolkit/cli"
	"github.com/bjaus/rpctoolkit/remote"
	"github.com/bjaus/rpctoolkit/server"
)

// appContext is the application context every leaf in this tree receives
// as HandlerArgs.Context. A real deployment would carry a DB handle, an
// auth principal, a logger — here it's just a tag so handlers can prove
// they received it, plus remote, which makes appContext RemoteCapable:
// a CLI process's context reports remote so echo forwards to a running
// "serve" instance, while a "serve" process's own per-request context
// reports local so echo runs its real logic in place.
type appContext struct {
	tag    string
	remote bool
}

// IsRemote implements dispatch.RemoteCapable.
func (c *appContext) IsRemote() bool { return c != nil && c.remote }

type helloParams struct {
	Whom string `json:"whom"`
}

func (p *helloParams) RegisterFlags(fs *pflag.FlagSet) { fs.StringVar(&p.Whom, "whom", "", "name to greet") }

type thing1Params struct {
	Thing string `json:"thing"`
}

func (p *thing1Params) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.Thing, "thing", "", "thing to report")
}

type dondeParams struct {
	Donde string `json:"donde"`
}

func (p *dondeParams) RegisterFlags(fs *pflag.FlagSet) { fs.StringVar(&p.Donde, "donde", "", "where") }

type fizzParams struct {
	Donde string `json:"donde"`
}

func (p *fizzParams) RegisterFlags(fs *pflag.FlagSet) { fs.StringVar(&p.Donde, "donde", "", "where") }

type echoParams struct {
	Next string `json:"next"`
	Auth string `json:"auth"`
}

func (p *echoParams) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.Next, "next", "", "value to echo")
	fs.StringVar(&p.Auth, "auth", "", "bearer token, stripped before forwarding")
}

type echoResult struct {
	Next string `json:"next"`
}

// buildTree assembles the demo's dispatch tree:
//
//	root -> hello
//	     -> group -> thing1
//	     -> dondes -> donde
//	     -> fizz (root slot)
//	     -> echo (dual dispatch: local or forwarded through caller, stripping Auth)
func buildTree(caller dispatch.RemoteCaller[*appContext, echoParams, dispatch.Flat[dispatch.Empty, dispatch.Empty], echoResult]) *dispatch.ParentHandler[*appContext, dispatch.Empty, dispatch.Empty] {
	root := dispatch.NewParentHandler[*appContext, dispatch.Empty, dispatch.Empty]()

	// S1 — direct leaf call: hello(whom) -> "Hello {whom}".
	hello := dispatch.FromFn(func(args dispatch.HandlerArgs[*appContext, helloParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]) (string, error) {
		return fmt.Sprintf("Hello %s", args.Params.Whom), nil
	})
	root.Subcommand("hello", dispatch.NewDynHandler[*appContext, helloParams, dispatch.Flat[dispatch.Empty, dispatch.Empty], string](hello))

	// S2/S6 — nested routing + CLI round-trip: group.thing1(thing) ->
	// "Thing1 is {thing}".
	group := dispatch.NewParentHandler[*appContext, dispatch.Empty, dispatch.Flat[dispatch.Empty, dispatch.Empty]]()
	thing1 := dispatch.FromFn(func(args dispatch.HandlerArgs[*appContext, thing1Params, dispatch.Flat[dispatch.Empty, dispatch.Flat[dispatch.Empty, dispatch.Empty]]]) (string, error) {
		return fmt.Sprintf("Thing1 is %s", args.Params.Thing), nil
	})
	group.Subcommand("thing1", dispatch.NewDynHandler[*appContext, thing1Params, dispatch.Flat[dispatch.Empty, dispatch.Flat[dispatch.Empty, dispatch.Empty]], string](thing1))
	root.Subcommand("group", group.AsDynHandler())

	// S3 — inherited params: dondes (Params={donde}) -> donde, projecting
	// the full inherited record down to just the donde string.
	dondes := dispatch.NewParentHandler[*appContext, dondeParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]()
	dondeInner := dispatch.FromFn(func(args dispatch.HandlerArgs[*appContext, dispatch.Empty, string]) (string, error) {
		return args.ParentParams, nil
	})
	dondeProjected := dispatch.WithInherited[*appContext, dispatch.Empty, dispatch.Flat[dondeParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]], string, string](
		dondeInner,
		func(full dispatch.Flat[dondeParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]) string { return full.A.Donde },
	)
	dondes.Subcommand("donde", dispatch.NewDynHandler[*appContext, dispatch.Empty, dispatch.Flat[dondeParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]], string](dondeProjected))
	root.Subcommand("dondes", dondes.AsDynHandler())

	// S4 — root-slot handler: fizz (Params={donde}) itself returns
	// "...Donde = {donde}" when invoked with no further segments.
	fizz := dispatch.NewParentHandler[*appContext, fizzParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]()
	fizzRoot := dispatch.FromFn(func(args dispatch.HandlerArgs[*appContext, dispatch.Empty, dispatch.Flat[fizzParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]]) (string, error) {
		return fmt.Sprintf("...Donde = %s", args.ParentParams.A.Donde), nil
	})
	fizz.RootHandler(dispatch.NewDynHandler[*appContext, dispatch.Empty, dispatch.Flat[fizzParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]], string](fizzRoot))
	root.Subcommand("fizz", fizz.AsDynHandler())

	// S7 — dual dispatch: echo(next, auth) runs its real logic directly
	// when the calling context isn't remote-capable, or forwards to
	// caller (stripping Auth via Without first) when it is. One method
	// name, transparently redirected depending on who answers it.
	echoInner := dispatch.FromFn(func(args dispatch.HandlerArgs[*appContext, echoParams, dispatch.Flat[dispatch.Empty, dispatch.Empty]]) (echoResult, error) {
		return echoResult{Next: args.Params.Next}, nil
	})
	echo := dispatch.WithRemoteCall[*appContext, echoParams, dispatch.Flat[dispatch.Empty, dispatch.Empty], echoResult](
		"echo", caller,
		func(p echoParams) dispatch.Value {
			extra, _ := json.Marshal(struct {
				Auth string `json:"auth"`
			}{Auth: p.Auth})
			return extra
		},
		echoInner,
	)
	root.Subcommand("echo", dispatch.NewDynHandler[*appContext, echoParams, dispatch.Flat[dispatch.Empty, dispatch.Empty], echoResult](echo))

	return root
}

// makeCtx builds the CLI's own context: remote is true here, since a CLI
// invocation is a short-lived process with nothing of its own to run
// echo's logic against — it always forwards over caller.
func makeCtx(context.Context, dispatch.Value) (*appContext, error) {
	return &appContext{tag: "demo", remote: true}, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "cli":
		runCLI(os.Args[2:])
	case "serve":
		addr := ":8080"
		if len(os.Args) > 2 {
			addr = os.Args[2]
		}
		runServe(logger, addr)
	case "call":
		if len(os.Args) < 5 {
			usage()
		}
		runCall(os.Args[2], os.Args[3], os.Args[4])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rpctoolkit-demo cli ...")
	fmt.Fprintln(os.Stderr, "       rpctoolkit-demo serve [addr]")
	fmt.Fprintln(os.Stderr, "       rpctoolkit-demo call <url> <method> <json-params>")
	os.Exit(2)
}

// runCLI drives the tree as a cobra command tree (S6). echo's
// RemoteCaller here is a direct in-process stub standing in for a real
// HTTP round trip; makeCtx's context reports remote, so the forwarding
// branch is the one actually exercised.
func runCLI(args []string) {
	caller := dispatch.RemoteCallerFunc[*appContext, echoParams, dispatch.Flat[dispatch.Empty, dispatch.Empty], echoResult](
		func(ctx context.Context, c *appContext, method string, params dispatch.Value) (dispatch.Value, error) {
			var in struct {
				Next string `json:"next"`
			}
			if err := json.Unmarshal(params, &in); err != nil {
				return nil, dispatch.ParseError(err)
			}
			return json.Marshal(echoResult{Next: in.Next})
		},
	)
	root := buildTree(caller)
	app := cli.New[*appContext]("rpctoolkit-demo", "worked example for the handler composition toolkit",
		dispatch.RootCLINode(root),
		dispatch.RootDispatcher(root, dispatch.Empty{}),
		makeCtx,
	)
	if err := app.Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe drives the tree over JSON-RPC/HTTP, logging every dispatch
// through the hooks server.Option exposes. echo's own RemoteCaller is a
// remote.HTTPCaller pointed back at this same process's own /rpc
// endpoint, but every request's context here reports remote=false, so
// "serve" always answers echo with its own real logic rather than
// calling itself.
func runServe(logger *slog.Logger, addr string) {
	caller := remote.HTTPCaller[*appContext]{URL: "http://" + addrForSelf(addr) + "/rpc"}
	root := buildTree(caller)

	srv := server.New[*appContext](dispatch.RootDispatcher(root, dispatch.Empty{}), 16,
		server.WithOnDispatch(func(ctx context.Context, method string) {
			logger.InfoContext(ctx, "dispatching", "method", method)
		}),
		server.WithOnSuccess(func(ctx context.Context, method string, d time.Duration) {
			logger.InfoContext(ctx, "dispatched", "method", method, "duration", d)
		}),
		server.WithOnFailure(func(ctx context.Context, method string, err error, d time.Duration) {
			logger.ErrorContext(ctx, "dispatch failed", "method", method, "error", err, "duration", d)
		}),
	)
	handler := srv.HTTPHandler(func(r *http.Request) (*appContext, error) {
		return &appContext{tag: "demo", remote: false}, nil
	})
	mux := http.NewServeMux()
	mux.Handle("/rpc", handler)
	logger.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addrForSelf turns a listen address like ":8080" into a dialable one
// like "localhost:8080" for echo's own call-out loopback.
func addrForSelf(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

// runCall demonstrates remote.HTTPCaller directly, outside the dispatch
// tree: a standalone client issuing one JSON-RPC call against a running
// "serve" instance.
func runCall(url, method, params string) {
	caller := remote.HTTPCaller[struct{}]{URL: url}
	result, err := caller.CallRemote(context.Background(), struct{}{}, method, dispatch.Value(params))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(result))
}
