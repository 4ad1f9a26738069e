package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/nnversace/hosttune"
)

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printSummary renders the aggregate result of an apply or revert run.
func printSummary(w io.Writer, mode string, outcomes []hosttune.Outcome, rec *hosttune.RunRecord) {
	_, _ = fmt.Fprintf(w, "%s summary:\n", mode)
	for _, oc := range outcomes {
		switch oc.Result {
		case "succeeded":
			_, _ = fmt.Fprintf(w, "  [ok]      %-15s %s\n", oc.Module, oc.Duration.Round(1e6))
		case "skipped":
			_, _ = fmt.Fprintf(w, "  [skipped] %-15s %s\n", oc.Module, reasonOf(oc))
		default:
			_, _ = fmt.Fprintf(w, "  [FAILED]  %-15s %s: %s\n", oc.Module, oc.Kind, reasonOf(oc))
		}
	}
	if rec.Interrupted {
		_, _ = fmt.Fprintln(w, "  run interrupted; remaining modules were skipped")
	}
	_, _ = fmt.Fprintf(w, "%d succeeded, %d failed\n", len(rec.Succeeded), len(rec.Failed))
}

func reasonOf(oc hosttune.Outcome) string {
	if oc.Err == nil {
		return ""
	}
	return oc.Err.Error()
}

// printStatuses renders per-module probe reports in registry order.
func printStatuses(w io.Writer, order []string, statuses map[string][]hosttune.ProbeResult) {
	names := make([]string, 0, len(statuses))
	for _, n := range order {
		if _, ok := statuses[n]; ok {
			names = append(names, n)
		}
	}
	// selections outside the registry order (shouldn't happen) still print
	if len(names) != len(statuses) {
		names = names[:0]
		for n := range statuses {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s:\n", name)
		for _, p := range statuses[name] {
			switch {
			case !p.OK:
				_, _ = fmt.Fprintf(w, "  %-35s unsupported\n", p.Key)
			case p.Want == "":
				_, _ = fmt.Fprintf(w, "  %-35s %s\n", p.Key, p.Value)
			case p.Matches:
				_, _ = fmt.Fprintf(w, "  %-35s matches\n", p.Key+"="+p.Value)
			default:
				_, _ = fmt.Fprintf(w, "  %-35s want %s\n", p.Key+"="+p.Value, p.Want)
			}
		}
	}
}
