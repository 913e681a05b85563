package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder populates omitted optional fields with non-nil,
// zero-width expression objects, so a simple nil check is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}

	// A real attribute occupies bytes in the file, while a placeholder for
	// an omitted optional attribute has a zero-width range.
	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// jobRanges maps job labels to the position of their block header, in the
// "file:line" form used by config.Job.Source. Duplicate labels keep the
// first position.
func jobRanges(file *hcl.File) map[string]string {
	out := make(map[string]string)
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return out
	}
	for _, block := range body.Blocks {
		if block.Type != "job" || len(block.Labels) != 1 {
			continue
		}
		if _, seen := out[block.Labels[0]]; seen {
			continue
		}
		r := block.DefRange()
		out[block.Labels[0]] = fmt.Sprintf("%s:%d", r.Filename, r.Start.Line)
	}
	return out
}
