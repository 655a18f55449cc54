package cli

import (
	"encoding/json"
	"fmt"

	"github.com/mmr-tortoise/flotilla/internal/engine"
)

// printSummary outputs a run's per-container results and converts any
// failures into a runError so the process exits non-zero. The run itself
// never aborts on a contained failure, so this is where partial failure
// becomes visible to scripts.
func printSummary(action string, sum *engine.Summary) error {
	if IsJSONOutput() {
		printSummaryJSON(action, sum)
	} else {
		printSummaryText(action, sum)
	}

	if failed := sum.Failed(); len(failed) > 0 {
		return &runError{failed: len(failed)}
	}
	return nil
}

func printSummaryJSON(action string, sum *engine.Summary) {
	type resultJSON struct {
		Name  string `json:"name"`
		State string `json:"state"`
		Error string `json:"error,omitempty"`
	}

	out := struct {
		Action    string       `json:"action"`
		Cancelled bool         `json:"cancelled,omitempty"`
		Results   []resultJSON `json:"results"`
	}{Action: action, Cancelled: sum.Cancelled}

	for _, r := range sum.Results {
		rj := resultJSON{Name: r.Name, State: string(r.State)}
		if r.Err != nil {
			rj.Error = r.Err.Error()
		}
		out.Results = append(out.Results, rj)
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func printSummaryText(action string, sum *engine.Summary) {
	for _, r := range sum.Results {
		if r.Err != nil {
			fmt.Printf("  %-20s %-10s %v\n", r.Name, r.State, r.Err)
			continue
		}
		fmt.Printf("  %-20s %s\n", r.Name, r.State)
	}
	if sum.Cancelled {
		fmt.Printf("%s cancelled\n", action)
	}
}
