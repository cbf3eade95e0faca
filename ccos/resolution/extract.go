package resolution

import "github.com/mandubian/ccos-sub004/rtfs/ast"

// CollectCapabilityIDs walks node and every reachable subexpression,
// returning the capability id of every `(call :id args)` site it finds.
// Exported for reuse by the orchestrator's plan-validation step, which
// needs the same declared-capability set this package computes for
// resolution-loop dependency extraction.
func CollectCapabilityIDs(node ast.Node) map[string]bool {
	out := make(map[string]bool)
	collectCapabilityIDs(node, out)
	return out
}

// collectCapabilityIDs walks node and every reachable subexpression,
// recording the capability id of each `(call :id args)` site it finds.
func collectCapabilityIDs(node ast.Node, out map[string]bool) {
	if node == nil {
		return
	}
	switch n := node.(type) {
	case *ast.Call:
		out[n.CapabilityID] = true
		collectCapabilityIDs(n.Args, out)
	case *ast.Do:
		for _, e := range n.Exprs {
			collectCapabilityIDs(e, out)
		}
	case *ast.Let:
		for _, b := range n.Bindings {
			collectCapabilityIDs(b.Expr, out)
		}
		for _, e := range n.Body {
			collectCapabilityIDs(e, out)
		}
	case *ast.If:
		collectCapabilityIDs(n.Cond, out)
		collectCapabilityIDs(n.Then, out)
		collectCapabilityIDs(n.Else, out)
	case *ast.Match:
		collectCapabilityIDs(n.Expr, out)
		for _, c := range n.Clauses {
			collectCapabilityIDs(c.Guard, out)
			collectCapabilityIDs(c.Body, out)
		}
	case *ast.TryCatch:
		for _, e := range n.Try {
			collectCapabilityIDs(e, out)
		}
		for _, c := range n.Catches {
			for _, e := range c.Body {
				collectCapabilityIDs(e, out)
			}
		}
		for _, e := range n.Finally {
			collectCapabilityIDs(e, out)
		}
	case *ast.Parallel:
		for _, b := range n.Bindings {
			collectCapabilityIDs(b.Expr, out)
		}
	case *ast.WithResource:
		collectCapabilityIDs(n.Init, out)
		for _, e := range n.Body {
			collectCapabilityIDs(e, out)
		}
	case *ast.LogStep:
		collectCapabilityIDs(n.Expr, out)
	case *ast.DiscoverAgents:
		collectCapabilityIDs(n.Criteria, out)
	case *ast.Defn:
		for _, e := range n.Body {
			collectCapabilityIDs(e, out)
		}
	case *ast.Fn:
		for _, e := range n.Body {
			collectCapabilityIDs(e, out)
		}
	case *ast.Def:
		collectCapabilityIDs(n.Expr, out)
	case *ast.Vector:
		for _, e := range n.Items {
			collectCapabilityIDs(e, out)
		}
	case *ast.ListExpr:
		for _, e := range n.Items {
			collectCapabilityIDs(e, out)
		}
	case *ast.MapExpr:
		for _, entry := range n.Entries {
			collectCapabilityIDs(entry.Key, out)
			collectCapabilityIDs(entry.Value, out)
		}
	case *ast.Module:
		for _, f := range n.Forms {
			collectCapabilityIDs(f, out)
		}
	}
}
