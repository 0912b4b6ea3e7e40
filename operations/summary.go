package operations

// Summary counts the outcomes of a run.
type Summary struct {
	Succeeded      int  `json:"succeeded" yaml:"succeeded" toml:"succeeded"`
	Failed         int  `json:"failed" yaml:"failed" toml:"failed"`
	Skipped        int  `json:"skipped" yaml:"skipped" toml:"skipped"`
	RequiresReboot bool `json:"requires_reboot" yaml:"requires_reboot" toml:"requires_reboot"`
}

// Summarize reduces a report to counts. A reboot is required when any successful result needs
// one.
func Summarize(r RunReport) Summary {
	var s Summary
	for _, res := range r.Results {
		switch res.Status {
		case StatusSuccess:
			s.Succeeded++
			if res.RequiresReboot {
				s.RequiresReboot = true
			}
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}

	return s
}

// Total is the number of results counted.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// OK reports whether a run with this summary should exit cleanly. Skipped operations are
// acceptable; failures only count in strict mode.
func (s Summary) OK(strict bool) bool {
	return !strict || s.Failed == 0
}
