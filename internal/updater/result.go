package updater

import (
	"fmt"
	"time"
)

const (
	MessageUnchanged = "File has not changed since last update"
	MessageNoNewData = "No new data to insert. The provided data matches the existing records."
)

// InsertedMessage is the success message for n inserted records.
func InsertedMessage(n int) string {
	return fmt.Sprintf("%d record(s) inserted", n)
}

// Result is the outcome of one successful update run.
type Result struct {
	Table            string    `json:"table"`
	RecordsProcessed int       `json:"recordsProcessed"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}
