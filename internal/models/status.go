package models

// Status is the liveness state of a station stream.
type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusOnline    Status = "online"
	StatusOffline   Status = "offline"
	StatusChecking  Status = "checking"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnchecked, StatusOnline, StatusOffline, StatusChecking:
		return true
	}
	return false
}
