package scanner

import "fmt"

// EventKind tells the events of a parse apart.
type EventKind int

const (
	EventSectionStarted EventKind = iota
	EventParameter
	EventSectionComplete
	EventParseComplete
)

func (k EventKind) String() string {
	switch k {
	case EventSectionStarted:
		return "SectionStarted"
	case EventParameter:
		return "Parameter"
	case EventSectionComplete:
		return "SectionComplete"
	case EventParseComplete:
		return "ParseComplete"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one parsed event. Key and Value are set for parameters only.
type Event struct {
	Kind    EventKind
	Section string
	Key     string
	Value   string
}

func (e Event) String() string {
	switch e.Kind {
	case EventParameter:
		return fmt.Sprintf("%s(%s, %s, %s)", e.Kind, e.Section, e.Key, e.Value)
	case EventParseComplete:
		return e.Kind.String() + "()"
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Section)
	}
}

// Recorder is a Listener that keeps every event it sees. Accept, when set,
// decides which sections are processed.
type Recorder struct {
	Events []Event
	Accept func(section string) bool
}

// SectionStarted implements Listener.
func (r *Recorder) SectionStarted(name string) (bool, error) {
	r.Events = append(r.Events, Event{Kind: EventSectionStarted, Section: name})
	if r.Accept == nil {
		return true, nil
	}
	return r.Accept(name), nil
}

// Parameter implements Listener.
func (r *Recorder) Parameter(section, key, value string) error {
	r.Events = append(r.Events, Event{Kind: EventParameter, Section: section, Key: key, Value: value})
	return nil
}

// SectionComplete implements Listener.
func (r *Recorder) SectionComplete(name string) error {
	r.Events = append(r.Events, Event{Kind: EventSectionComplete, Section: name})
	return nil
}

// ParseComplete implements Listener.
func (r *Recorder) ParseComplete() error {
	r.Events = append(r.Events, Event{Kind: EventParseComplete})
	return nil
}

// Parameters returns the recorded parameter events.
func (r *Recorder) Parameters() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == EventParameter {
			out = append(out, e)
		}
	}
	return out
}
