package tables

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

func TestDefaultsBuild(t *testing.T) {
	descs, err := BuildAll(Defaults())
	require.NoError(t, err)
	require.Len(t, descs, 2)

	cars := descs[0]
	assert.Equal(t, "cars", cars.Table)
	assert.Equal(t, "month", cars.PartitionField)
	assert.Equal(t, "M03-Car_Regn_by_make.csv", cars.CSVFileName)

	v, err := cars.FieldTransforms["make"](" toyota ")
	require.NoError(t, err)
	assert.Equal(t, "TOYOTA", v)

	v, err = cars.FieldTransforms["number"]("1,024")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), v)

	coe := descs[1]
	v, err = coe.FieldTransforms["premium"]("104,000")
	require.NoError(t, err)
	assert.Equal(t, int64(104000), v)

	require.NotNil(t, cars.ValidateRecord)
	require.NotNil(t, coe.ValidateRecord)
	assert.NoError(t, cars.ValidateRecord(models.Record{"month": "2024-01", "make": "TOYOTA", "fuel_type": "Petrol", "number": int64(3)}))
	assert.Error(t, cars.ValidateRecord(models.Record{"month": "2024-01", "make": "", "fuel_type": "Petrol"}))
	assert.Error(t, coe.ValidateRecord(models.Record{"month": "2024-01", "bidding_no": int64(1), "vehicle_class": "Category Z"}))
}

func TestBuildLeavesUnknownTablesUnvalidated(t *testing.T) {
	d, err := Build(config.TableConfig{Name: "motorcycles", SourceURL: "https://x.test/m.csv", KeyFields: []string{"month"}})
	require.NoError(t, err)
	assert.Nil(t, d.ValidateRecord)
}

func TestBuildAllCollectsErrors(t *testing.T) {
	_, err := BuildAll([]config.TableConfig{
		{Name: "a", SourceURL: "https://x.test/a.csv", KeyFields: []string{"id"}, Transforms: map[string][]string{"id": {"reverse"}}},
		{Name: "b", SourceURL: "https://x.test/b.csv"},
		{Name: "c", SourceURL: "https://x.test/c.csv", KeyFields: []string{"id"}},
	})
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), "reverse")
}

func TestConfigured(t *testing.T) {
	assert.Len(t, Configured(&config.Config{}), 2)

	cfg := &config.Config{Tables: []config.TableConfig{{Name: "only"}}}
	tcs := Configured(cfg)
	require.Len(t, tcs, 1)
	assert.Equal(t, "only", tcs[0].Name)
}
