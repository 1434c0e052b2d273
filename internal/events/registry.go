package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// run
	"run.started":   {},
	"run.completed": {},

	// job
	"job.started":   {},
	"job.cached":    {},
	"job.solution":  {},
	"job.completed": {},
	"job.progress":  {},
	"job.lost":      {},

	// store
	"store.ready": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}

// Names returns every allowed event name.
func Names() []string {
	out := make([]string, 0, len(allowedEvents))
	for name := range allowedEvents {
		out = append(out, name)
	}
	return out
}
