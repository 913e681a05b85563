package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/matrix"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/verdict"
)

var statusColors = map[node.Status]lipgloss.Color{
	node.StatusSucceeded: lipgloss.Color("2"),
	node.StatusFailed:    lipgloss.Color("1"),
	node.StatusSkipped:   lipgloss.Color("8"),
}

// RenderReport writes the outcome table of a run followed by its verdict.
func RenderReport(w io.Writer, r *verdict.Report) error {
	renderer := lipgloss.NewRenderer(w)
	header := renderer.NewStyle().Bold(true).Padding(0, 1)
	cell := renderer.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(r.Instances))
	for _, ir := range r.Instances {
		detail := ir.Reason
		if ir.Error != "" {
			detail = ir.Error
		}
		duration := ""
		if ir.Duration > 0 {
			duration = ir.Duration.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{ir.Instance, ir.Status.String(), duration, detail})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(renderer.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("INSTANCE", "STATUS", "DURATION", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 1 && row >= 0 && row < len(r.Instances) {
				if c, ok := statusColors[r.Instances[row].Status]; ok {
					return cell.Foreground(c)
				}
			}
			return cell
		})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	icon, color := "✅", statusColors[node.StatusSucceeded]
	if r.Verdict != verdict.Succeeded {
		icon, color = "❌", statusColors[node.StatusFailed]
	}
	line := renderer.NewStyle().Bold(true).Foreground(color).
		Render(fmt.Sprintf("%s %s: %s", icon, r.Pipeline, strings.ToUpper(string(r.Verdict))))
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, f := range r.Failures {
		if _, err := fmt.Fprintf(w, "  - %s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// RenderPlan writes the expanded instances in dispatch order.
func RenderPlan(w io.Writer, plan *dag.Plan) error {
	renderer := lipgloss.NewRenderer(w)
	header := renderer.NewStyle().Bold(true).Padding(0, 1)
	cell := renderer.NewStyle().Padding(0, 1)

	var rows [][]string
	for i, inst := range plan.Instances() {
		t, _ := plan.Template(inst.Job.Name)
		condition := ""
		if t.Condition != nil {
			condition = t.Condition.Source()
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), inst.Key(), strings.Join(t.Needs, ", "), condition})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(renderer.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("#", "INSTANCE", "NEEDS", "CONDITION").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	combinations := 0
	for _, tmpl := range plan.Templates() {
		combinations += matrix.Count(tmpl.Job)
	}
	summary := fmt.Sprintf("%s: %d jobs, %d instances", plan.Name(), len(plan.Templates()), len(plan.Instances()))
	if excluded := combinations - len(plan.Instances()); excluded > 0 {
		summary += fmt.Sprintf(" (%d excluded by matrix rules)", excluded)
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", t.Render(), summary)
	return err
}
