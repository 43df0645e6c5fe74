package reminder

import (
	"fmt"

	"github.com/charlie0129/battrem/pkg/powerinfo"
)

// Evaluate decides which reminder, if any, a reading calls for. Both
// comparisons are strict: a charge exactly at a threshold never triggers.
func Evaluate(r powerinfo.Reading, t Thresholds) Decision {
	if r.Percent < t.MinPercent && !r.IsCharging {
		return Low
	}
	if r.Percent > t.MaxPercent && r.IsCharging {
		return High
	}
	return None
}

// Content returns the notification title and body for a decision.
func Content(d Decision, percent int) (title, body string) {
	switch d {
	case Low:
		return fmt.Sprintf("Low Battery %d%%!", percent), "Please plug in your charger."
	case High:
		return fmt.Sprintf("High Battery %d%%!", percent), "Please unplug your charger."
	default:
		return "", ""
	}
}
