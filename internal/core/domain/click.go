package domain

import "time"

// TrafficSource identifies where an outbound click originated.
type TrafficSource string

const (
	SourcePersonalChannel TrafficSource = "personal_channel"
	SourceGroup           TrafficSource = "group"
	SourceSearch          TrafficSource = "search"
	SourceAd              TrafficSource = "ad"
	SourceDirect          TrafficSource = "direct"
	SourceInline          TrafficSource = "inline"
	SourceReferral        TrafficSource = "referral"
)

// Valid reports whether s is one of the known traffic sources.
func (s TrafficSource) Valid() bool {
	switch s {
	case SourcePersonalChannel, SourceGroup, SourceSearch, SourceAd,
		SourceDirect, SourceInline, SourceReferral:
		return true
	}
	return false
}

// ClickEvent is an immutable record of one outbound redirect through an
// affiliate link. It is written once by the click tracker and referenced by
// conversions through ClickID.
type ClickEvent struct {
	ClickID        string            `json:"clickId"`
	UserID         string            `json:"userId"`
	SessionID      string            `json:"sessionId"`
	StoreID        string            `json:"storeId"`
	Source         TrafficSource     `json:"source"`
	SourceDetails  map[string]string `json:"sourceDetails,omitempty"`
	OriginalURL    string            `json:"originalUrl"`
	DestinationURL string            `json:"destinationUrl"`
	UserAgent      string            `json:"userAgent,omitempty"`
	IPAddress      string            `json:"ipAddress,omitempty"`
	Country        string            `json:"country,omitempty"`
	DeviceType     string            `json:"deviceType,omitempty"`
	ClickedAt      time.Time         `json:"clickedAt"`
}
