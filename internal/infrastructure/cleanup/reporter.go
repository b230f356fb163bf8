// Package cleanup provides ascii reporter
package cleanup

import (
	"fmt"
	"io"
	"os"
	"time"
)

const (
	cyan     = "\033[38;2;86;182;194m"  // One Dark Cyan: #56B6C2
	grey     = "\033[38;2;110;118;129m" // Brighter Grey: #6E7681
	success  = "\033[38;2;62;130;144m"  // Dim Cyan: #3E8290
	errorRed = "\033[38;2;224;108;117m" // One Dark Red: #E06C75
	white    = "\033[38;2;171;178;191m" // One Dark Foreground: #ABB2BF
	reset    = "\033[0m"
	bold     = "\033[1m"
)

// Reporter prints cleanup passes to a terminal.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

func (r *Reporter) LogStage(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogSuccess(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, white, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogError(message string, err error) {
	fmt.Fprintf(r.out, "%s%s✗ %s: %v%s\n", errorRed, bold, message, err, reset)
}

// LogResult prints one pass.
func (r *Reporter) LogResult(res Result) {
	fmt.Fprintf(r.out, "%s  states purged:   %s%d%s\n", cyan, white, res.StatesPurged, reset)
	fmt.Fprintf(r.out, "%s  syncers evicted: %s%d%s\n", cyan, white, res.SyncersEvicted, reset)
	fmt.Fprintf(r.out, "%s  took:            %s%v%s\n", cyan, white, res.Duration.Round(time.Millisecond), reset)
}
