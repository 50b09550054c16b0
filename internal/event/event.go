package event

import (
	"fmt"
	"reflect"
)

// GenericEvent represents an event sent to or received from Inngest, with
// fully typed event data and user payloads.
type GenericEvent[DATA any, USER any] struct {
	// ID is an optional event ID used for deduplication.  If empty, an ID is
	// assigned when the event is sent.
	ID *string `json:"id,omitempty"`

	// Name represents the name of the event.  We recommend the following
	// simple format: "noun.action".  For example, this may be "signup.new",
	// "payment.succeeded", "email.sent", "post.viewed".
	//
	// Name is required.
	Name string `json:"name"`

	// Data is a key-value map of data belonging to the event.  This should
	// include all relevant data.  For example, a "signup.new" event may include
	// the user's email, their plan information, the signup method, etc.
	Data DATA `json:"data"`

	// User is a key-value map of data belonging to the user that authored the
	// event.  This data will be upserted into the contact store.
	User USER `json:"user,omitempty"`

	// Timestamp is the time the event occurred at *millisecond* (not nanosecond)
	// precision.  If left blank, the client sets it to the time the event is
	// sent.
	Timestamp int64 `json:"ts,omitempty"`

	// Version represents the event's version.  Versions can be used to denote
	// when the structure of an event changes over time.
	Version string `json:"v,omitempty"`
}

// Event is an event with arbitrary map-based data, the common case when
// handling events of many shapes.
type Event = GenericEvent[map[string]any, any]

// Validate returns an error if the event is not well formed.
func (e GenericEvent[DATA, USER]) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event name must be present")
	}
	if err := ValidateEventDataType(e.Data); err != nil {
		return err
	}
	return nil
}

// ValidateEventDataType ensures that event data serializes to a JSON object:
// a map, a struct, or a pointer to either.  Scalars, slices, and functions are
// rejected at construction rather than failing at the event API.
func ValidateEventDataType(data any) error {
	if data == nil {
		return nil
	}

	t := reflect.TypeOf(data)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Map, reflect.Struct:
		return nil
	default:
		return fmt.Errorf("event data must be a map or struct, got %s", t.Kind())
	}
}
