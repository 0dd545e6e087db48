package siteimport

import "time"

type EventType string

const (
	EventTypePageview    EventType = "pageview"
	EventTypeCustomEvent EventType = "custom_event"
)

// CanonicalEvent is one normalized analytics event. ImportID and SiteID tag
// it so a whole import can be removed from the event store.
type CanonicalEvent struct {
	ImportID        string
	SiteID          int64
	SourceID        string
	Timestamp       time.Time
	Type            EventType
	EventName       string
	SessionID       string
	Hostname        string
	Pathname        string
	Querystring     string
	PageTitle       string
	Referrer        string
	Browser         string
	OperatingSystem string
	DeviceType      string
	ScreenWidth     uint16
	ScreenHeight    uint16
	Language        string
	Country         string
	Region          string
	City            string
}
