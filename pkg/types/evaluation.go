package types

import (
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
)

// Trigger tells what caused an evaluation.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerTick     Trigger = "tick"
	TriggerPower    Trigger = "power"
	TriggerSettings Trigger = "settings"
	TriggerManual   Trigger = "manual"
)

// Evaluation is the outcome of one read-evaluate-apply cycle. It is
// shared between the daemon and client packages.
type Evaluation struct {
	Trigger    Trigger             `json:"trigger"`
	Reading    powerinfo.Reading   `json:"reading"`
	Thresholds reminder.Thresholds `json:"thresholds"`
	Frequency  int                 `json:"frequency"`
	Decision   reminder.Decision   `json:"decision"`
	Reminder   reminder.State      `json:"reminder"`
	Error      string              `json:"error,omitempty"`
}
