package decoder

import "strings"

// UntitledProposal is the title used when the first description line is blank.
const UntitledProposal = "Untitled Proposal"

// ParseDescription splits a proposal description into a title and a body.
// The title is the first line without leading markdown heading markers.
func ParseDescription(raw string) (title, description string) {
	first, rest, _ := strings.Cut(raw, "\n")

	title = strings.TrimSpace(first)
	title = strings.TrimSpace(strings.TrimLeft(title, "#"))
	if title == "" {
		title = UntitledProposal
	}

	return title, strings.TrimSpace(rest)
}
