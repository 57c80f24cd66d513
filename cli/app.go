// Package cli builds a cobra command tree from the same dispatch.CLINode
// a server exposes over JSON-RPC, so a handler tree gets both transports
// from a single registration.
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	dispatch "github.com/bjaus/rpctoolkit"
)

// Dispatcher resolves a dotted method against a dispatch tree bound to
// context C. Build one with dispatch.RootDispatcher.
type Dispatcher[C any] func(ctx context.Context, c C, method string, params dispatch.Value) (dispatch.Value, error)

// ContextFunc builds the application context for a run from the raw
// params the top-level command's own flags parsed (global flags such as
// --config or --log-level). It runs once per invocation, before any
// subcommand's handler does.
type ContextFunc[C any] func(ctx context.Context, rootParams dispatch.Value) (C, error)

// App drives a dispatch.CLINode tree as a cobra.Command tree: every
// node's own CLIBinding contributes persistent flags that combine, via
// dispatch.Combine, into the params the resolved leaf ultimately
// receives — the same Flat-inherited-params chain the JSON-RPC server
// sees, just gathered from flags instead of from a shared JSON object.
type App[C any] struct {
	use      string
	short    string
	root     dispatch.CLINode
	dispatch Dispatcher[C]
	makeCtx  ContextFunc[C]
}

// New creates an App. root is typically the result of
// dispatch.RootCLINode on the same *dispatch.ParentHandler whose
// dispatch.RootDispatcher produces dispatcher.
func New[C any](use, short string, root dispatch.CLINode, dispatcher Dispatcher[C], makeCtx ContextFunc[C]) *App[C] {
	return &App[C]{use: use, short: short, root: root, dispatch: dispatcher, makeCtx: makeCtx}
}

// parseFunc reads a node's already-parsed flags back into a Value.
type parseFunc func() (dispatch.Value, error)

// Run builds the full command tree and executes it against args (pass
// os.Args[1:]).
func (a *App[C]) Run(ctx context.Context, args []string) error {
	var appCtx C
	root := &cobra.Command{
		Use:          a.use,
		Short:        a.short,
		SilenceUsage: true,
	}

	rootParse := a.bindFlags(root, a.root, true)
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		rootParams, err := rootParse()
		if err != nil {
			return err
		}
		c, err := a.makeCtx(cmd.Context(), rootParams)
		if err != nil {
			return err
		}
		appCtx = c
		return nil
	}

	a.attachChildren(root, a.root, nil, []parseFunc{rootParse}, func() C { return appCtx })

	root.SetArgs(args)
	root.SetContext(ctx)
	return root.ExecuteContext(ctx)
}

// bindFlags registers node's own CLIBinding flags on cmd (persistent if
// persistent, so descendants inherit them) and returns a parseFunc that
// reads them back. A NoCli leaf gets a no-op parseFunc; a node whose
// Params doesn't implement CLIParams still gets a real parseFunc, it just
// registers no flags of its own.
func (a *App[C]) bindFlags(cmd *cobra.Command, node dispatch.CLINode, persistent bool) parseFunc {
	binding, ok := node.CLIBinding()
	if !ok || binding.RegisterFlags == nil {
		return func() (dispatch.Value, error) { return dispatch.EmptyObject, nil }
	}
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	return binding.RegisterFlags(fs)
}

// attachChildren wires node's subcommands (and root slot, if any) onto
// cmd, threading the accumulated ancestor parseFuncs down so each leaf's
// RunE can combine every ancestor's flags with its own.
func (a *App[C]) attachChildren(cmd *cobra.Command, node dispatch.CLINode, method []string, ancestors []parseFunc, ctxOf func() C) {
	if rootNode, ok := node.CLIRoot(); ok {
		rootParse := a.bindFlags(cmd, rootNode, false)
		binding, _ := rootNode.CLIBinding()
		cmd.RunE = a.runE(method, append(append([]parseFunc{}, ancestors...), rootParse), binding, ctxOf)
	}

	for _, child := range node.CLIChildren() {
		child := child
		name := ""
		if child.Name != nil {
			name = *child.Name
		}
		sub := &cobra.Command{Use: name}
		// Persistent, not local: if child.Node is itself a ParentHandler,
		// its own flags must be visible to whichever of its descendants
		// ultimately runs, the same way a JSON-RPC dispatch sees every
		// ancestor's params in the same shared object. A leaf has no
		// descendants, so registering persistent here costs it nothing.
		ownParse := a.bindFlags(sub, child.Node, true)
		childMethod := append(append([]string{}, method...), name)
		childAncestors := append(append([]parseFunc{}, ancestors...), ownParse)

		if binding, ok := child.Node.CLIBinding(); ok && len(child.Node.CLIChildren()) == 0 {
			if _, hasRoot := child.Node.CLIRoot(); !hasRoot {
				sub.RunE = a.runE(childMethod, childAncestors, binding, ctxOf)
			}
		}
		a.attachChildren(sub, child.Node, childMethod, childAncestors, ctxOf)
		cmd.AddCommand(sub)
	}
}

// runE builds a cobra RunE that combines every accumulated parseFunc into
// one params Value, dispatches method against it, and displays the
// result via binding.Display.
func (a *App[C]) runE(method []string, parsers []parseFunc, binding dispatch.CLIBinding, ctxOf func() C) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		params := dispatch.EmptyObject
		for _, parse := range parsers {
			v, err := parse()
			if err != nil {
				return err
			}
			combined, err := dispatch.Combine(params, v)
			if err != nil {
				return err
			}
			params = combined
		}

		result, err := a.dispatch(cmd.Context(), ctxOf(), strings.Join(method, "."), params)
		if err != nil {
			return err
		}
		if binding.Display != nil {
			return binding.Display(result)
		}
		return nil
	}
}
