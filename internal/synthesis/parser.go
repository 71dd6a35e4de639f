package synthesis

import (
	"errors"
	"strconv"
	"strings"

	"github.com/expedition-ai/expedition/internal/journey"
)

// section labels the synthesis prompt asks for. FORWARD-LOOK is accepted
// as an alias since models sometimes echo the field name instead of the
// label.
var sectionAliases = map[string]string{
	"SUMMARY":        "summary",
	"CONNECTIONS":    "connections",
	"PATTERNS":       "patterns",
	"CONTRADICTIONS": "contradictions",
	"FORWARD":        "forward",
	"FORWARD-LOOK":   "forward",
	"SCORE":          "score",
	"KEY INSIGHTS":   "insights",
}

// ParseReport parses the labeled-section response into a report. Minor
// formatting deviation is tolerated and optional fields may be absent,
// but a missing or empty SUMMARY section is a parse failure.
func ParseReport(text string) (*journey.SynthesisReport, error) {
	sections := make(map[string]*strings.Builder)
	var insightLines []string
	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if label, rest, ok := matchSection(trimmed); ok {
			current = label
			if current == "insights" {
				continue
			}
			sections[current] = &strings.Builder{}
			sections[current].WriteString(rest)
			continue
		}

		switch current {
		case "":
			// preamble before the first label is ignored
		case "insights":
			if item, ok := strings.CutPrefix(trimmed, "- "); ok {
				insightLines = append(insightLines, strings.TrimSpace(item))
			} else if item, ok := strings.CutPrefix(trimmed, "* "); ok {
				insightLines = append(insightLines, strings.TrimSpace(item))
			}
		default:
			if trimmed != "" {
				b := sections[current]
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(trimmed)
			}
		}
	}

	get := func(key string) string {
		if b, ok := sections[key]; ok {
			return strings.TrimSpace(b.String())
		}
		return ""
	}

	report := &journey.SynthesisReport{
		Summary:        get("summary"),
		Connections:    get("connections"),
		Patterns:       get("patterns"),
		Contradictions: get("contradictions"),
		ForwardLook:    get("forward"),
		KeyInsights:    insightLines,
	}
	if report.Summary == "" {
		return nil, errors.New("synthesis response missing SUMMARY section")
	}

	if raw := get("score"); raw != "" {
		// tolerate "7", "7.5", "7/10", "7.5 out of 10"
		raw = strings.TrimSpace(strings.SplitN(raw, "/", 2)[0])
		if i := strings.IndexByte(raw, ' '); i > 0 {
			raw = raw[:i]
		}
		if score, err := strconv.ParseFloat(raw, 64); err == nil && score >= 0 && score <= 10 {
			report.Score = score
		}
	}

	return report, nil
}

// matchSection checks whether a line opens a labeled section, returning
// the canonical section key and any text following the colon.
func matchSection(line string) (label, rest string, ok bool) {
	upper := strings.ToUpper(line)
	for alias, key := range sectionAliases {
		if strings.HasPrefix(upper, alias+":") {
			return key, strings.TrimSpace(line[len(alias)+1:]), true
		}
	}
	return "", "", false
}
