package replication

// Sink receives collection change notifications. Calls are synchronous and
// arrive in mutation order.
type Sink interface {
	OnAdded(e Entry)
	OnChanged(e Entry)
	OnRemoved(e Entry)
	OnPropertyChanged(e Entry, change PropertyChange)
}

// Sinks fans every notification out to each sink in order.
type Sinks []Sink

func (s Sinks) OnAdded(e Entry) {
	for _, sink := range s {
		sink.OnAdded(e)
	}
}

func (s Sinks) OnChanged(e Entry) {
	for _, sink := range s {
		sink.OnChanged(e)
	}
}

func (s Sinks) OnRemoved(e Entry) {
	for _, sink := range s {
		sink.OnRemoved(e)
	}
}

func (s Sinks) OnPropertyChanged(e Entry, change PropertyChange) {
	for _, sink := range s {
		sink.OnPropertyChanged(e, change)
	}
}

// NopSink ignores every notification.
type NopSink struct{}

func (NopSink) OnAdded(Entry)                           {}
func (NopSink) OnChanged(Entry)                         {}
func (NopSink) OnRemoved(Entry)                         {}
func (NopSink) OnPropertyChanged(Entry, PropertyChange) {}
