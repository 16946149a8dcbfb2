package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	skipMark  = "[--]"
)

// writeResult prints v as indented JSON or as styled text.
func writeResult(format string, v any) error {
	if format == OutputJSON {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(b))
		return nil
	}

	switch r := v.(type) {
	case *RunResult:
		fmt.Fprint(stdout, renderRun(r))
	case *PlanResult:
		fmt.Fprint(stdout, renderPlan(r))
	default:
		fmt.Fprintln(stdout, v)
	}
	return nil
}

func renderRun(r *RunResult) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  azhpc %s: %s", r.Command, r.Prefix)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n")

	if r.Report != nil {
		renderReport(&b, "Provisioning", r.Report)
	}
	if r.Repair != nil {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Repair"))
		b.WriteString("\n")
		status := dimStyle.Render("no action")
		switch {
		case r.Repair.Repaired:
			status = okStyle.Render("certificate created")
		case r.Repair.Existing:
			status = okStyle.Render("certificate already present")
		}
		fmt.Fprintf(&b, "    %s\n    %s\n", r.Repair.Action, status)
	}
	if r.Resumed != nil {
		renderReport(&b, "Provisioning (after repair)", r.Resumed)
	}

	if o := r.Remediation; o != nil {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Remediation"))
		b.WriteString("\n")
		if o.Skipped {
			fmt.Fprintf(&b, "    %s\n", warningStyle.Render(o.Summary))
		} else {
			fmt.Fprintf(&b, "    %s %s\n", o.Choice, dimStyle.Render("("+o.Source+")"))
			if o.Summary != "" {
				fmt.Fprintf(&b, "    %s\n", o.Summary)
			}
			for i, line := range o.Guidance {
				fmt.Fprintf(&b, "    %d. %s\n", i+1, line)
			}
			if o.Note != "" {
				fmt.Fprintf(&b, "    note: %s\n", o.Note)
			}
		}
	}

	if out := r.Outputs; out != nil {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Outputs"))
		b.WriteString("\n")
		renderField(&b, "Resource group", out.ResourceGroup)
		renderField(&b, "Storage account", out.StorageAccount)
		renderField(&b, "Key vault", out.KeyVault)
		renderField(&b, "Certificate", out.CertificateID)
		renderField(&b, "Cluster", out.ClusterID)
		renderField(&b, "Scheduler", out.SchedulerEndpoint)
	}
	if r.AdminKeyPath != "" {
		renderField(&b, "Admin key", r.AdminKeyPath)
	}

	if r.Error != "" {
		b.WriteString("\n")
		b.WriteString(failedStyle.Render("  Error: " + r.Error))
		b.WriteString("\n")
	}
	return b.String()
}

// renderReport lists each step with its state, error signature and attempts.
func renderReport(b *strings.Builder, title string, report *provisioning.Report) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  " + title))
	b.WriteString("\n")
	for _, rec := range report.Steps {
		switch rec.State {
		case resource.StateSucceeded:
			fmt.Fprintf(b, "    %s %s\n", okStyle.Render(checkMark), rec.Step)
		case resource.StateSkipped:
			fmt.Fprintf(b, "    %s %s %s\n", dimStyle.Render(skipMark), rec.Step, dimStyle.Render("("+rec.Warning+")"))
		case resource.StateFailed:
			sig := ""
			if rec.Error != nil {
				sig = rec.Error.String()
			}
			fmt.Fprintf(b, "    %s %s %s %s\n", failedStyle.Render(crossMark), rec.Step, sig,
				dimStyle.Render(fmt.Sprintf("(%d attempt(s))", rec.Attempts)))
		}
	}
	if report.Aborted {
		b.WriteString(warningStyle.Render("    run aborted, later steps were not evaluated"))
		b.WriteString("\n")
	}
}

func renderField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "    %-16s %s\n", name+":", value)
}
