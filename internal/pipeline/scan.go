package pipeline

import (
	"regexp"
	"strings"
)

// marker is one parsed `command target id` reference found while
// scanning a page body (step 4). Only the tokens needed to
// decide which fragment keys to prefetch are kept; the evaluator
// re-tokenizes (and fully interprets, including quoted args) at render
// time — scanning and rendering deliberately don't share state.
type marker struct {
	command string
	target  string
	id      string
}

// scan finds every marker in body that has at least three tokens
// (command, target, id) and returns them in body order. It does not
// filter by kind; the caller skips "page"/"session" targets.
func scan(pattern *regexp.Regexp, body []byte) []marker {
	matches := pattern.FindAllSubmatch(body, -1)
	markers := make([]marker, 0, len(matches))
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		tokens := strings.Fields(string(m[1]))
		if len(tokens) < 3 {
			continue
		}
		markers = append(markers, marker{command: tokens[0], target: tokens[1], id: strings.Trim(tokens[2], `"`)})
	}
	return markers
}
