package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity grades the urgency of a notification. The ordering is total:
// -1 < 0 < 2 < 3 < 4 < 5, higher is more urgent.
type Severity int

const (
	SeverityDontCare Severity = -1 // suppress, e.g. hours before a trip starts
	SeverityOK       Severity = 0  // informational green status
	SeverityMinor    Severity = 2
	SeverityWarning  Severity = 3
	SeverityUrgent   Severity = 4
	SeverityCritical Severity = 5
)

var validSeverities = map[Severity]bool{
	SeverityDontCare: true,
	SeverityOK:       true,
	SeverityMinor:    true,
	SeverityWarning:  true,
	SeverityUrgent:   true,
	SeverityCritical: true,
}

// EventType tags the variant of a notification event.
type EventType string

const (
	EventOK           EventType = "ok"
	EventDontCare     EventType = "dontCare"
	EventGeneral      EventType = "general"
	EventNoPings      EventType = "noPings"
	EventLateArrival  EventType = "lateArrival"
	EventLateETA      EventType = "lateETA"
	EventCancellation EventType = "cancellation"
)

var validEventTypes = map[EventType]bool{
	EventOK:           true,
	EventDontCare:     true,
	EventGeneral:      true,
	EventNoPings:      true,
	EventLateArrival:  true,
	EventLateETA:      true,
	EventCancellation: true,
}

// NotificationEvent is a classified alert or info record. Created fresh each
// cycle, never mutated. Events with an empty message are placeholders and are
// dropped before persistence.
type NotificationEvent struct {
	Time      time.Time   `json:"time"`
	Trip      TripSummary `json:"trip"`
	Severity  Severity    `json:"severity"`
	Message   string      `json:"message"`
	Type      EventType   `json:"type"`
	DelayMins int         `json:"delayInMins,omitempty"`

	// AlertID is the deterministic alert identity; DateRoute groups alerts
	// for the same route on the same service day.
	AlertID   string `json:"alertId"`
	DateRoute string `json:"dateRoute"`
}

// NewEvent builds a notification event with its identity keys. Severity and
// type come from closed enumerations; anything else is a logic bug, so this
// panics rather than coercing.
func NewEvent(now time.Time, trip *Trip, severity Severity, message string, typ EventType) NotificationEvent {
	if !validSeverities[severity] {
		panic(fmt.Sprintf("domain: invalid severity %d", severity))
	}
	if typ == "" {
		typ = EventGeneral
	}
	if !validEventTypes[typ] {
		panic(fmt.Sprintf("domain: invalid event type %q", typ))
	}
	date := now.Format("2006-01-02")
	return NotificationEvent{
		Time:     now,
		Trip:     trip.Summary(),
		Severity: severity,
		Message:  message,
		Type:     typ,
		AlertID: strings.Join([]string{
			date,
			fmt.Sprint(trip.RouteID),
			string(typ),
			fmt.Sprint(int(severity)),
			message,
		}, "|"),
		DateRoute: fmt.Sprintf("%s|%d", date, trip.RouteID),
	}
}

// NewNoPingsEvent flags a driver app that has not reported recently.
func NewNoPingsEvent(now time.Time, trip *Trip, severity Severity, delayMins int) NotificationEvent {
	e := NewEvent(now, trip, severity,
		fmt.Sprintf("Driver app not switched on %d mins before", delayMins), EventNoPings)
	e.DelayMins = delayMins
	return e
}

// NewLateArrivalEvent records a confirmed late arrival at a stop.
func NewLateArrivalEvent(now time.Time, trip *Trip, severity Severity, delayMins int) NotificationEvent {
	e := NewEvent(now, trip, severity,
		fmt.Sprintf("Service arrived %d mins late", delayMins), EventLateArrival)
	e.DelayMins = delayMins
	return e
}

// NewLateETAEvent flags an extrapolated arrival later than scheduled.
func NewLateETAEvent(now time.Time, trip *Trip, severity Severity, delayMins int) NotificationEvent {
	e := NewEvent(now, trip, severity,
		fmt.Sprintf("Service might be more than %d mins late", delayMins), EventLateETA)
	e.DelayMins = delayMins
	return e
}

// NewCancellationEvent reports a cancelled trip.
func NewCancellationEvent(now time.Time, trip *Trip, severity Severity) NotificationEvent {
	return NewEvent(now, trip, severity, "Emergency switched on", EventCancellation)
}

// OKEvent is the green placeholder: everything fine, nothing to say.
func OKEvent(now time.Time, trip *Trip) NotificationEvent {
	return NewEvent(now, trip, SeverityOK, "", EventOK)
}

// DontCareEvent is the grey placeholder: the trip is not operationally
// interesting right now.
func DontCareEvent(now time.Time, trip *Trip) NotificationEvent {
	return NewEvent(now, trip, SeverityDontCare, "", EventDontCare)
}

// EventSet is the triple of independent event channels produced for every
// trip on every cycle.
type EventSet struct {
	Ping      NotificationEvent `json:"pingEvent"`
	Distance  NotificationEvent `json:"distanceEvent"`
	Emergency NotificationEvent `json:"emergencyEvent"`
}
