package wsi

import "time"

// Metrics observes the client. internal/metrics provides a Prometheus
// implementation.
type Metrics interface {
	ObserveBatch(records int, d time.Duration)
	SetStoreSize(n int)
	SetSubscriptions(n int)
	SetConnected(connected bool)
	IncNewEvents(n int)
	IncClosedEvents(n int)
	IncNotificationErrors()
}

type nopMetrics struct{}

func (nopMetrics) ObserveBatch(int, time.Duration) {}
func (nopMetrics) SetStoreSize(int)                {}
func (nopMetrics) SetSubscriptions(int)            {}
func (nopMetrics) SetConnected(bool)               {}
func (nopMetrics) IncNewEvents(int)                {}
func (nopMetrics) IncClosedEvents(int)             {}
func (nopMetrics) IncNotificationErrors()          {}
