package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/hunt"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/tasks"
)

func loadRequestFile(path string) (hunt.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hunt.Request{}, fmt.Errorf("read request: %w", err)
	}
	return parseRequest(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// parseRequest decodes a hunt request. Unknown keys are rejected so a typo in
// a trigger field does not silently drop it.
func parseRequest(data []byte, isJSON bool) (hunt.Request, error) {
	var req hunt.Request
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return hunt.Request{}, fmt.Errorf("parse request: %w", err)
		}
		return req, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return hunt.Request{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderReport(w io.Writer, report *hunt.Report) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Score", "Urgency", "Headline", "Source", "Decision Maker"})
	for _, s := range report.Signals {
		tw.AppendRow(table.Row{s.Score, s.Urgency, s.Headline, s.SourceDomain, s.DecisionMaker})
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d signal(s)", len(report.Signals)), "", ""})
	tw.Render()

	st := report.Stats
	fmt.Fprintf(w, "hunt %s: %d task(s), %d failed, %d claim(s), %d chunk(s), %d attempt(s)",
		report.HuntID, st.Tasks, st.FailedTasks, st.Claims, st.Chunks, st.Attempts)
	if st.Cached {
		fmt.Fprint(w, ", cached")
	}
	fmt.Fprintln(w)
	for reason, n := range st.Rejections {
		fmt.Fprintf(w, "  rejected %s: %d\n", reason, n)
	}
}

func renderPlan(w io.Writer, plan tasks.Plan) {
	fmt.Fprintf(w, "region %s, window %s, web=%t sites=%t\n", plan.Region, plan.Window, plan.WebMode, plan.SitesMode)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Mode", "Site"})
	for _, t := range plan.Tasks {
		tw.AppendRow(table.Row{t.ID, t.Mode(), t.Site})
	}
	tw.Render()
}
