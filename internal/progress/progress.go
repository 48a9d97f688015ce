// Package progress defines the capability the pipeline uses to report what
// it is doing, passed explicitly to the driver (and from it to the
// extraction stage) instead of published onto a shared bus.
package progress

import "fmt"

// Progress is notified of step transitions, in-step progress, and skip
// decisions as the driver runs the plan.
type Progress interface {
	NotifyStep(stepIndex, total int, step string)
	NotifyProgress(step string, current, total int)
	NotifySkip(step, reason string)
}

// NoOp discards every notification.
type NoOp struct{}

func (NoOp) NotifyStep(int, int, string)     {}
func (NoOp) NotifyProgress(string, int, int) {}
func (NoOp) NotifySkip(string, string)       {}

var _ Progress = NoOp{}

// Stdout renders notifications as single lines on standard output.
type Stdout struct{}

func (Stdout) NotifyStep(stepIndex, total int, step string) {
	fmt.Printf("[%d/%d] %s\n", stepIndex, total, step)
}

func (Stdout) NotifyProgress(step string, current, total int) {
	fmt.Printf("  %s: %d/%d\n", step, current, total)
}

func (Stdout) NotifySkip(step, reason string) {
	fmt.Printf("[skip] %s: %s\n", step, reason)
}

var _ Progress = Stdout{}
