package fleetwatch

import (
	"pkt.systems/fleetwatch/core"
	"pkt.systems/fleetwatch/schema"
)

type sinkFanout struct {
	sinks []core.Sink
}

func (f sinkFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}

func (f sinkFanout) OnFeedback(event schema.FeedbackEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnFeedback(event)
	}
}

// FanoutSinks combines sinks into one. Nil entries are skipped; a single
// non-nil sink is returned as-is.
func FanoutSinks(sinks ...core.Sink) core.Sink {
	nonNil := make([]core.Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			nonNil = append(nonNil, sink)
		}
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}
	return sinkFanout{sinks: nonNil}
}
