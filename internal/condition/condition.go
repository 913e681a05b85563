package condition

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Roots lists the identifiers an expression may start a reference with.
var Roots = map[string]struct{}{
	"trigger": {},
	"branch":  {},
	"commit":  {},
	"ref":     {},
	"event":   {},
	"env":     {},
	"matrix":  {},
	"needs":   {},
}

var allowedBinaryOps = map[*hclsyntax.Operation]string{
	hclsyntax.OpEqual:      "==",
	hclsyntax.OpNotEqual:   "!=",
	hclsyntax.OpLogicalAnd: "&&",
	hclsyntax.OpLogicalOr:  "||",
}

// Expression is a compiled gating condition.
type Expression struct {
	source string
	expr   hclsyntax.Expression
	refs   []Reference
}

// Compile parses and validates an expression. The returned error is always
// a *ConditionError.
func Compile(source string) (*Expression, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return nil, &ConditionError{Expression: source, Reason: "expression is empty"}
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &ConditionError{Expression: src, Reason: diags.Error()}
	}

	diags = hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if reason := disallowed(n); reason != "" {
			return hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Unsupported expression",
				Detail:   reason,
				Subject:  n.Range().Ptr(),
			}}
		}
		return nil
	})
	if diags.HasErrors() {
		return nil, &ConditionError{Expression: src, Reason: diags[0].Detail}
	}

	compareAsText(src, expr)

	e := &Expression{source: src, expr: expr}
	for _, tr := range expr.Variables() {
		ref, err := referenceFromTraversal(src, tr)
		if err != nil {
			return nil, err
		}
		if _, ok := Roots[ref.Root()]; !ok {
			return nil, &ConditionError{Expression: src, Reference: ref.String(), Reason: "unknown namespace"}
		}
		e.refs = append(e.refs, ref)
	}
	return e, nil
}

// disallowed returns a non-empty reason when n is outside the supported subset.
func disallowed(n hclsyntax.Node) string {
	switch x := n.(type) {
	case *hclsyntax.LiteralValueExpr, *hclsyntax.ScopeTraversalExpr, *hclsyntax.ParenthesesExpr:
		return ""
	case *hclsyntax.TemplateExpr:
		if x.IsStringLiteral() {
			return ""
		}
		return "string interpolation is not supported"
	case *hclsyntax.BinaryOpExpr:
		if _, ok := allowedBinaryOps[x.Op]; ok {
			return ""
		}
		return "only ==, !=, && and || are supported"
	case *hclsyntax.UnaryOpExpr:
		if x.Op == hclsyntax.OpLogicalNot {
			return ""
		}
		return "only the ! unary operator is supported"
	case *hclsyntax.FunctionCallExpr:
		return fmt.Sprintf("function call %q is not supported", x.Name)
	case *hclsyntax.ConditionalExpr:
		return "conditional expressions are not supported"
	default:
		return fmt.Sprintf("%T is not supported", n)
	}
}

// compareAsText rewrites bool and number literals on either side of == and !=
// into strings holding their source text. Every scope value is a string, so
// `created == true` and `matrix.python == 3.10` compare the way they read.
func compareAsText(src string, expr hclsyntax.Expression) {
	hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		bin, ok := n.(*hclsyntax.BinaryOpExpr)
		if !ok || (bin.Op != hclsyntax.OpEqual && bin.Op != hclsyntax.OpNotEqual) {
			return nil
		}
		bin.LHS = literalText(src, bin.LHS)
		bin.RHS = literalText(src, bin.RHS)
		return nil
	})
}

func literalText(src string, e hclsyntax.Expression) hclsyntax.Expression {
	if p, ok := e.(*hclsyntax.ParenthesesExpr); ok {
		p.Expression = literalText(src, p.Expression)
		return p
	}
	lit, ok := e.(*hclsyntax.LiteralValueExpr)
	if !ok || lit.Val.IsNull() || lit.Val.Type() == cty.String {
		return e
	}
	rng := lit.SrcRange
	return &hclsyntax.LiteralValueExpr{Val: cty.StringVal(src[rng.Start.Byte:rng.End.Byte]), SrcRange: rng}
}

// Source returns the normalized expression text.
func (e *Expression) Source() string {
	return e.source
}

// References returns every scope reference in source order.
func (e *Expression) References() []Reference {
	return e.refs
}

// NeedsJobs returns the job names referenced under `needs`.
func (e *Expression) NeedsJobs() []string {
	var jobs []string
	seen := make(map[string]struct{})
	for _, r := range e.refs {
		if r.Root() != "needs" || len(r.Path) < 2 {
			continue
		}
		name := r.Path[1].Name
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			jobs = append(jobs, name)
		}
	}
	return jobs
}

// Evaluate resolves every reference through scope and evaluates the
// expression. Errors are always *ConditionError.
func (e *Expression) Evaluate(scope Scope) (bool, error) {
	tree := make(map[string]any)
	for _, ref := range e.refs {
		v, err := scope.Lookup(ref.Path)
		if err != nil {
			return false, &ConditionError{Expression: e.source, Reference: ref.String(), Reason: err.Error()}
		}
		if err := insert(tree, ref.Path, v); err != nil {
			return false, &ConditionError{Expression: e.source, Reference: ref.String(), Reason: err.Error()}
		}
	}

	vars := make(map[string]cty.Value, len(tree))
	for k, v := range tree {
		vars[k] = toValue(v)
	}

	val, diags := e.expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return false, &ConditionError{Expression: e.source, Reason: diags.Error()}
	}
	if val.IsNull() || !val.IsKnown() {
		return false, &ConditionError{Expression: e.source, Reason: "expression produced no value"}
	}
	b, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, &ConditionError{Expression: e.source, Reason: fmt.Sprintf("expression must produce a bool, got %s", val.Type().FriendlyName())}
	}
	return b.True(), nil
}

// insert places v at path inside a nested map tree.
func insert(tree map[string]any, path []Segment, v cty.Value) error {
	node := tree
	for i, seg := range path {
		if i == len(path)-1 {
			if _, exists := node[seg.Name]; exists {
				if _, isMap := node[seg.Name].(map[string]any); isMap {
					return fmt.Errorf("does not name a single value")
				}
			}
			node[seg.Name] = v
			return nil
		}
		next, exists := node[seg.Name]
		if !exists {
			child := make(map[string]any)
			node[seg.Name] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is a value, not a namespace", seg.Name)
		}
		node = child
	}
	return nil
}

func toValue(v any) cty.Value {
	switch x := v.(type) {
	case cty.Value:
		return x
	case map[string]any:
		attrs := make(map[string]cty.Value, len(x))
		for k, child := range x {
			attrs[k] = toValue(child)
		}
		return cty.ObjectVal(attrs)
	default:
		return cty.NilVal
	}
}
