package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
)

func TestNewRegistersDefaultTables(t *testing.T) {
	cfg, err := config.Parse([]byte(`
database:
  driver: sqlite
  dsn: "file:app_test?mode=memory&cache=shared"
fetcher:
  work_dir: ` + t.TempDir() + `
`))
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, true)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"cars", "coe"}, a.Runner.Tables())
	assert.Equal(t, "0 */1 * * *", a.Schedules["cars"])
	assert.Nil(t, a.Redis)

	runs, err := a.Runner.Recent(context.Background(), "cars", 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNewRejectsInvalidTable(t *testing.T) {
	cfg, err := config.Parse([]byte(`
database:
  dsn: "file:app_invalid?mode=memory&cache=shared"
tables:
  - name: bikes
    source_url: https://example.test/bikes.csv
    key_fields: [month]
    transforms:
      month: [reverse]
`))
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, false)
	assert.ErrorContains(t, err, "reverse")
}

func TestNewS3Disabled(t *testing.T) {
	client, err := newS3(config.S3Config{Region: "ap-southeast-1"})
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = newS3(config.S3Config{Region: "ap-southeast-1", Endpoint: "http://localhost:9000", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}
