package cli

import (
	"fmt"
	"math"
	"strings"

	flagkit "github.com/flagkit/go-sdk"
)

const (
	debugTextOn  = "[DEBUG: Feature \x1b[36mON\x1b[0m]"
	debugTextOff = "[DEBUG: Feature \x1b[33mOFF\x1b[0m]"

	sortFallbackText = "Flag off. User saw the product list sorted alphabetically by default."
	sortVariable     = "sort_method"
)

type experience struct {
	text    string
	enabled bool
}

func experienceFor(decision flagkit.Decision) experience {
	if !decision.Enabled {
		return experience{text: sortFallbackText}
	}
	return experience{text: decision.GetString(sortVariable, ""), enabled: true}
}

func percentage(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(count) * 100 / float64(total)))
}

// buildSorterReport renders the product-sorter report for the given
// per-visitor decisions, in visitor order.
func buildSorterReport(decisions []flagkit.Decision) string {
	experiences := make([]experience, len(decisions))
	enabled := 0
	for i, d := range decisions {
		experiences[i] = experienceFor(d)
		if experiences[i].enabled {
			enabled++
		}
	}

	var b strings.Builder
	b.WriteString("\n\nWelcome to our product catalog!\n")
	b.WriteString("Let's see what product sorting the visitors experience!\n\n")

	for i, e := range experiences {
		if enabled > 0 {
			debug := debugTextOff
			if e.enabled {
				debug = debugTextOn
			}
			fmt.Fprintf(&b, "Visitor #%d: %s %s\n", i, debug, e.text)
		} else {
			fmt.Fprintf(&b, "Visitor #%d: %s\n", i, e.text)
		}
	}
	b.WriteString("\n")

	total := len(experiences)
	if enabled > 0 {
		fmt.Fprintf(&b, "%d out of %d visitors (~%d%%) had the feature flag enabled\n\n", enabled, total, percentage(enabled, total))
	}

	// first-seen order
	var texts []string
	counts := map[string]int{}
	for _, e := range experiences {
		if _, ok := counts[e.text]; !ok {
			texts = append(texts, e.text)
		}
		counts[e.text]++
	}
	for _, text := range texts {
		fmt.Fprintf(&b, "%d visitors (~%d%%) got the experience: '%s'\n", counts[text], percentage(counts[text], total), text)
	}
	return b.String()
}
