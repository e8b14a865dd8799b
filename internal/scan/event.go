package scan

import (
	"time"

	"github.com/serroba/scanlink/internal/classifier"
	"github.com/serroba/scanlink/internal/geo"
)

// TopicScanRecorded is the stream topic scans are queued on in stream record mode.
const TopicScanRecorded = "scans.recorded"

// Event is one resolved redirect attempt. Events are append-only.
type Event struct {
	ID         string    `json:"id,omitempty"`
	QRID       string    `json:"qrId"`
	ScannedAt  time.Time `json:"scannedAt"`
	DeviceType string    `json:"deviceType"`
	OS         string    `json:"os"`
	Browser    string    `json:"browser"`
	IP         string    `json:"ip"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
}

// NewEvent builds the scan of link qrID from the classified client and its location.
// ID and ScannedAt are left for the store to assign at insertion.
func NewEvent(qrID, ip string, client classifier.Result, loc geo.Location) *Event {
	return &Event{
		QRID:       qrID,
		DeviceType: client.DeviceType,
		OS:         client.OS,
		Browser:    client.Browser,
		IP:         ip,
		Country:    loc.Country,
		City:       loc.City,
	}
}
