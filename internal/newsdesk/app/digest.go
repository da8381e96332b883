package app

import (
	"fmt"
	"strings"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
)

const digestMaxItems = 10

// digestMessage renders a research result as a numbered headline list.
func digestMessage(res *research.Result) notify.Message {
	var b strings.Builder
	for i, a := range res.Articles {
		if i == digestMaxItems {
			fmt.Fprintf(&b, "… and %d more\n", len(res.Articles)-digestMaxItems)
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.Title)
		if a.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", a.Summary)
		}
		if a.URL != "" {
			fmt.Fprintf(&b, "   %s\n", a.URL)
		}
	}
	title := fmt.Sprintf("Daily news: %s", res.Topic)
	if res.Provider != "" {
		title += fmt.Sprintf(" (%s)", res.Provider)
	}
	return notify.Message{Title: title, Body: strings.TrimRight(b.String(), "\n")}
}
