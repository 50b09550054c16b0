package inngestgo

import "github.com/inngest/inngestgo/internal/fn"

// Trigger is a single event or cron trigger for a function.
type Trigger = fn.Trigger

// MultipleTriggers runs a function on any of the given triggers.
type MultipleTriggers = fn.MultipleTriggers

// Triggerable is implemented by Trigger and MultipleTriggers.
type Triggerable = fn.Triggerable

// EventTrigger runs a function whenever an event with the given name is
// received.  The optional expression filters events, eg.
// "event.data.value >= 100".
func EventTrigger(name string, expression *string) Trigger {
	return Trigger{
		Event:      &name,
		Expression: expression,
	}
}

// CronTrigger runs a function on the given cron schedule, without a triggering
// event.
func CronTrigger(cron string) Trigger {
	return Trigger{
		Cron: &cron,
	}
}
