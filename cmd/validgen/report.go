package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/jhump/validgen/gosource"
	"github.com/jhump/validgen/processor"
)

// report is the JSON form of a command's result.
type report struct {
	Version     uint64                 `json:"version,omitempty"`
	Artifacts   []string               `json:"artifacts,omitempty"`
	Diagnostics []processor.Diagnostic `json:"diagnostics"`
	Stats       *processor.Stats       `json:"stats,omitempty"`
	Written     *gosource.WriteStats   `json:"written,omitempty"`
}

func passReport(pass *processor.Pass, written *gosource.WriteStats) report {
	r := report{
		Version:     pass.Version,
		Diagnostics: pass.Diagnostics,
		Stats:       &pass.Stats,
		Written:     written,
	}
	for _, a := range pass.Artifacts {
		r.Artifacts = append(r.Artifacts, a.Namespace.Path+"/"+a.FileName)
	}
	sort.Strings(r.Artifacts)
	if r.Diagnostics == nil {
		r.Diagnostics = []processor.Diagnostic{}
	}
	return r
}

// printer writes results either as colored text or as one JSON document per
// result.
type printer struct {
	out  io.Writer
	json bool
}

func (p printer) print(r report) error {
	if p.json {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	for _, d := range r.Diagnostics {
		p.diagnostic(d)
	}
	if r.Stats != nil {
		summary := color.New(color.FgCyan)
		summary.Fprintf(p.out, "%d declarations, %d artifacts, %d diagnostics (%d cached, %d computed)\n",
			r.Stats.Seen, len(r.Artifacts), len(r.Diagnostics), r.Stats.Hits, r.Stats.Computed)
	}
	if r.Written != nil {
		color.New(color.FgGreen).Fprintf(p.out, "%d written, %d unchanged, %d removed\n",
			r.Written.Written, r.Written.Unchanged, r.Written.Removed)
	}
	return nil
}

func (p printer) diagnostic(d processor.Diagnostic) {
	var sev *color.Color
	switch d.Severity {
	case processor.SeverityError:
		sev = color.New(color.FgRed, color.Bold)
	case processor.SeverityWarning:
		sev = color.New(color.FgYellow, color.Bold)
	default:
		sev = color.New(color.FgCyan)
	}
	if d.Pos.IsValid() {
		color.New(color.Bold).Fprintf(p.out, "%v: ", d.Pos)
	}
	sev.Fprintf(p.out, "%s", d.Severity)
	fmt.Fprintf(p.out, ": %s: %s\n", color.New(color.Faint).Sprint(d.Kind), d.Message)
}

type diagnosticsError int

func (e diagnosticsError) Error() string {
	if e == 1 {
		return "1 declaration has errors"
	}
	return fmt.Sprintf("%d declarations have errors", int(e))
}

// checkDiagnostics turns error diagnostics into a command failure, after they
// have been printed.
func checkDiagnostics(diags []processor.Diagnostic) error {
	n := 0
	for _, d := range diags {
		if d.Severity == processor.SeverityError {
			n++
		}
	}
	if n > 0 {
		return diagnosticsError(n)
	}
	return nil
}
