package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// COEResult is the outcome of one COE bidding exercise for one vehicle category.
type COEResult struct {
	bun.BaseModel `bun:"table:coe,alias:coe"`

	ID           int64        `bun:"id,pk,autoincrement" json:"id"`
	Month        string       `bun:"month,notnull" json:"month"`
	BiddingNo    int64        `bun:"bidding_no,notnull" json:"bidding_no"`
	VehicleClass VehicleClass `bun:"vehicle_class,notnull" json:"vehicle_class"`
	Quota        int64        `bun:"quota,notnull,default:0" json:"quota"`
	BidsSuccess  int64        `bun:"bids_success,notnull,default:0" json:"bids_success"`
	BidsReceived int64        `bun:"bids_received,notnull,default:0" json:"bids_received"`
	Premium      int64        `bun:"premium,notnull,default:0" json:"premium"`
	CreatedAt    time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Validate checks that the bidding result is internally consistent.
func (r *COEResult) Validate() error {
	if !monthPattern.MatchString(r.Month) {
		return errors.New("month must be formatted as YYYY-MM")
	}
	if r.BiddingNo != 1 && r.BiddingNo != 2 {
		return errors.New("bidding number must be 1 or 2")
	}
	if !r.VehicleClass.Valid() {
		return errors.New("unknown vehicle class")
	}
	if r.Quota < 0 || r.BidsSuccess < 0 || r.BidsReceived < 0 || r.Premium < 0 {
		return errors.New("counts and premium must not be negative")
	}
	return nil
}

// COEResultFromRecord maps a parsed bidding row onto a COEResult.
func COEResultFromRecord(r Record) (*COEResult, error) {
	res := &COEResult{
		Month:        r.Text("month"),
		VehicleClass: VehicleClass(r.Text("vehicle_class")),
	}
	fields := []struct {
		name string
		dst  *int64
	}{
		{"bidding_no", &res.BiddingNo},
		{"quota", &res.Quota},
		{"bids_success", &res.BidsSuccess},
		{"bids_received", &res.BidsReceived},
		{"premium", &res.Premium},
	}
	for _, f := range fields {
		n, err := r.Int(f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = n
	}
	return res, nil
}

// ValidateCOERecord rejects bidding rows that would not form a valid COEResult.
func ValidateCOERecord(r Record) error {
	res, err := COEResultFromRecord(r)
	if err != nil {
		return err
	}
	return res.Validate()
}
