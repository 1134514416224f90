// Package tables turns configured datasets into updater descriptors.
package tables

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/csvparse"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/updater"
)

const datamall = "https://datamall.lta.gov.sg/content/dam/datamall/datasets/Facts_Figures"

// Defaults are the datasets tracked when the config file lists none.
func Defaults() []config.TableConfig {
	return []config.TableConfig{
		{
			Name:           "cars",
			SourceURL:      datamall + "/Vehicle%20Registration/New%20Registration%20of%20Cars%20by%20Make.zip",
			CSVFile:        "M03-Car_Regn_by_make.csv",
			PartitionField: "month",
			KeyFields:      []string{"month", "make", "fuel_type", "vehicle_type"},
			Transforms: map[string][]string{
				"make":   {"trim", "uppercase"},
				"number": {"strip_thousands", "integer"},
			},
			Schedule: "0 */1 * * *",
		},
		{
			Name:           "coe",
			SourceURL:      datamall + "/Vehicle%20Quota%20&%20COE/COE%20Bidding%20Results.zip",
			CSVFile:        "M11-coe_results.csv",
			PartitionField: "month",
			KeyFields:      []string{"month", "bidding_no", "vehicle_class"},
			Transforms: map[string][]string{
				"bidding_no":    {"integer"},
				"quota":         {"strip_thousands", "integer"},
				"bids_success":  {"strip_thousands", "integer"},
				"bids_received": {"strip_thousands", "integer"},
				"premium":       {"strip_thousands", "integer"},
			},
			Schedule: "0 */1 * * *",
		},
	}
}

// validators check rows of the tables that have a typed model.
var validators = map[string]func(models.Record) error{
	"cars": models.ValidateCarRecord,
	"coe":  models.ValidateCOERecord,
}

// Configured returns the tables from cfg, or Defaults when there are none.
func Configured(cfg *config.Config) []config.TableConfig {
	if len(cfg.Tables) == 0 {
		return Defaults()
	}
	return cfg.Tables
}

// Build resolves named transforms and returns a validated descriptor.
func Build(tc config.TableConfig) (updater.Descriptor, error) {
	transforms := make(map[string]csvparse.TransformFunc, len(tc.Transforms))
	for field, names := range tc.Transforms {
		fn, err := csvparse.LookupChain(names)
		if err != nil {
			return updater.Descriptor{}, fmt.Errorf("table %s field %s: %w", tc.Name, field, err)
		}
		transforms[field] = fn
	}

	desc := updater.Descriptor{
		Table:           tc.Name,
		PartitionField:  tc.PartitionField,
		KeyFields:       tc.KeyFields,
		SourceURL:       tc.SourceURL,
		CSVFileName:     tc.CSVFile,
		ColumnMapping:   tc.ColumnMapping,
		FieldTransforms: transforms,
		ValidateRecord:  validators[tc.Name],
		BatchSize:       tc.BatchSize,
	}
	if err := desc.Validate(); err != nil {
		return updater.Descriptor{}, err
	}
	return desc, nil
}

// BuildAll builds every table and reports all invalid ones together.
func BuildAll(tcs []config.TableConfig) ([]updater.Descriptor, error) {
	var result error
	descs := make([]updater.Descriptor, 0, len(tcs))
	for _, tc := range tcs {
		d, err := Build(tc)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		descs = append(descs, d)
	}
	if result != nil {
		return nil, result
	}
	return descs, nil
}
