package models

import (
	"errors"
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Car is a monthly new car registration count by make, fuel and vehicle type.
type Car struct {
	bun.BaseModel `bun:"table:cars,alias:c"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Month        string    `bun:"month,notnull" json:"month"`
	Make         string    `bun:"make,notnull" json:"make"`
	ImporterType string    `bun:"importer_type" json:"importer_type"`
	FuelType     string    `bun:"fuel_type,notnull" json:"fuel_type"`
	VehicleType  string    `bun:"vehicle_type,notnull" json:"vehicle_type"`
	Number       int64     `bun:"number,notnull,default:0" json:"number"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Validate checks that required registration fields are present.
func (c *Car) Validate() error {
	if !monthPattern.MatchString(c.Month) {
		return errors.New("month must be formatted as YYYY-MM")
	}
	if c.Make == "" {
		return errors.New("make is required")
	}
	if c.FuelType == "" {
		return errors.New("fuel type is required")
	}
	if c.Number < 0 {
		return errors.New("number must not be negative")
	}
	return nil
}

// CarFromRecord maps a parsed registration row onto a Car.
func CarFromRecord(r Record) (*Car, error) {
	number, err := r.Int("number")
	if err != nil {
		return nil, err
	}
	return &Car{
		Month:        r.Text("month"),
		Make:         r.Text("make"),
		ImporterType: r.Text("importer_type"),
		FuelType:     r.Text("fuel_type"),
		VehicleType:  r.Text("vehicle_type"),
		Number:       number,
	}, nil
}

// ValidateCarRecord rejects registration rows that would not form a valid Car.
func ValidateCarRecord(r Record) error {
	c, err := CarFromRecord(r)
	if err != nil {
		return err
	}
	return c.Validate()
}
