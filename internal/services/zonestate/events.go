package zonestate

import "field-route-service/internal/domain"

// Event is the closed set of notifications the Manager publishes.
type Event interface{ zoneEvent() }

// BeforeCleanup fires before the previous zone's data is discarded.
type BeforeCleanup struct{ Key domain.ZoneKey }

// AfterCleanup fires once the previous zone's data is gone.
type AfterCleanup struct{ Key domain.ZoneKey }

type DataLoaded struct {
	Key        domain.ZoneKey
	RouteCount int
	StopCount  int
}

type DataUpdated struct {
	Key        domain.ZoneKey
	RouteCount int
	StopCount  int
}

type ManualStopAdded struct{ Stop *domain.Stop }
type ManualStopRemoved struct{ Stop *domain.Stop }
type StopSelected struct{ Stop *domain.Stop }
type StopDeselected struct{ Stop *domain.Stop }
type MarkersUpdated struct{ Markers []domain.MarkerView }

// StateChanged accompanies every mutation that changed at least one field.
type StateChanged struct {
	Old     State
	New     State
	Changes []string
}

func (BeforeCleanup) zoneEvent()     {}
func (AfterCleanup) zoneEvent()      {}
func (DataLoaded) zoneEvent()        {}
func (DataUpdated) zoneEvent()       {}
func (ManualStopAdded) zoneEvent()   {}
func (ManualStopRemoved) zoneEvent() {}
func (StopSelected) zoneEvent()      {}
func (StopDeselected) zoneEvent()    {}
func (MarkersUpdated) zoneEvent()    {}
func (StateChanged) zoneEvent()      {}
