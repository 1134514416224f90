package models

// RunStatus is the outcome of an update run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunUnchanged RunStatus = "unchanged"
	RunNoNewData RunStatus = "no_new_data"
	RunError     RunStatus = "error"
)

// VehicleClass is a COE bidding category.
type VehicleClass string

const (
	CategoryA VehicleClass = "Category A"
	CategoryB VehicleClass = "Category B"
	CategoryC VehicleClass = "Category C"
	CategoryD VehicleClass = "Category D"
	CategoryE VehicleClass = "Category E"
)

// Valid reports whether the class is one of the published COE categories.
func (v VehicleClass) Valid() bool {
	switch v {
	case CategoryA, CategoryB, CategoryC, CategoryD, CategoryE:
		return true
	}
	return false
}
