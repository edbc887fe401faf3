package streaming

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
)

// EventFormatter interface for pretty output
type EventFormatter interface {
	PrintEvent(event Event)
	PrintObserverError(observerKey string, err error)
	PrintCycleSummary(cycle, events, errors int)
}

// ColorEventFormatter prints events and cycle summaries with ANSI colors.
type ColorEventFormatter struct {
	out io.Writer

	eventColor   *color.Color
	keyColor     *color.Color
	errorColor   *color.Color
	summaryColor *color.Color
}

// NewColorEventFormatter creates a formatter writing to stdout.
func NewColorEventFormatter() *ColorEventFormatter {
	return NewColorEventFormatterWithWriter(os.Stdout)
}

// NewColorEventFormatterWithWriter creates a formatter writing to out.
func NewColorEventFormatterWithWriter(out io.Writer) *ColorEventFormatter {
	return &ColorEventFormatter{
		out:          out,
		eventColor:   color.New(color.FgGreen, color.Bold),
		keyColor:     color.New(color.FgCyan),
		errorColor:   color.New(color.FgRed, color.Bold),
		summaryColor: color.New(color.FgWhite, color.Faint),
	}
}

func (f *ColorEventFormatter) PrintEvent(event Event) {
	fmt.Fprintf(f.out, "%s %s %s",
		f.eventColor.Sprint(event.Type),
		f.keyColor.Sprint(event.ObserverKey),
		event.ID)
	keys := make([]string, 0, len(event.Payload))
	for k := range event.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.out, " %s=%v", k, event.Payload[k])
	}
	fmt.Fprintln(f.out)
}

func (f *ColorEventFormatter) PrintObserverError(observerKey string, err error) {
	fmt.Fprintf(f.out, "%s %s: %v\n",
		f.errorColor.Sprint("error"),
		f.keyColor.Sprint(observerKey),
		err)
}

func (f *ColorEventFormatter) PrintCycleSummary(cycle, events, errors int) {
	fmt.Fprintln(f.out, f.summaryColor.Sprintf(
		"cycle %d: %d event(s), %d error(s)", cycle, events, errors))
}
