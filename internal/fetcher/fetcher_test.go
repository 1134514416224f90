package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/ratelimit"
)

var fastLimits = ratelimit.HostConfigs{Fallback: ratelimit.Config{
	RequestsPerSec: 1000,
	Burst:          10,
	MaxRetries:     2,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
}}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDownloadWritesFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("month,make\n"))
	}))
	defer ts.Close()

	f := New(t.TempDir(), WithHTTPClient(ts.Client()), WithLimits(fastLimits))

	p, err := f.Download(context.Background(), ts.URL+"/datasets/cars.csv", "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "cars.csv"))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "month,make\n", string(data))

	named, err := f.Download(context.Background(), ts.URL+"/datasets/cars.csv", "renamed.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(named, "renamed.csv"))
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	f := New(t.TempDir(), WithHTTPClient(ts.Client()), WithLimits(fastLimits))
	_, err := f.Download(context.Background(), ts.URL+"/coe.csv", "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := New(t.TempDir(), WithHTTPClient(ts.Client()), WithLimits(fastLimits))
	_, err := f.Download(context.Background(), ts.URL+"/missing.zip", "")

	var dlErr *DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, http.StatusNotFound, dlErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDownloadRejectsUnknownScheme(t *testing.T) {
	f := New(t.TempDir(), WithLimits(fastLimits))
	_, err := f.Download(context.Background(), "ftp://example.com/file.csv", "")

	var dlErr *DownloadError
	assert.True(t, errors.As(err, &dlErr))
}

func TestFetchAndExtract(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"M03-Car_Regn_by_make.csv":            "month,make\n2024-01,TOYOTA\n",
		"nested/M03-Car_Regn_by_fuel.csv":     "month,fuel_type\n",
		"__MACOSX/._M03-Car_Regn_by_make.csv": "junk",
	})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer ts.Close()

	f := New(t.TempDir(), WithHTTPClient(ts.Client()), WithLimits(fastLimits))
	entries, err := f.FetchAndExtract(context.Background(), ts.URL+"/cars.zip")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	p, err := Entry(entries, "M03-Car_Regn_by_make.csv")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TOYOTA")

	_, err = Entry(entries, "M02-COE.csv")
	var missing *MissingEntryError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "M02-COE.csv", missing.Expected)
	assert.Equal(t, []string{"M03-Car_Regn_by_fuel.csv", "M03-Car_Regn_by_make.csv"}, missing.Found)
	assert.Contains(t, err.Error(), "M03-Car_Regn_by_make.csv")
}

func TestFetchAndExtractRejectsNonZip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a zip"))
	}))
	defer ts.Close()

	f := New(t.TempDir(), WithHTTPClient(ts.Client()), WithLimits(fastLimits))
	_, err := f.FetchAndExtract(context.Background(), ts.URL+"/broken.zip")
	assert.Error(t, err)
}

func TestFetchAndExtractConcurrentCallsDoNotShareFiles(t *testing.T) {
	const runs = 4
	archives := make([][]byte, runs)
	for i := range archives {
		archives[i] = buildZip(t, map[string]string{"M02-COE.csv": strings.Repeat("x", i+1)})
	}
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		_, _ = w.Write(archives[(n-1)%runs])
	}))
	defer ts.Close()

	workDir := t.TempDir()
	f := New(workDir, WithHTTPClient(ts.Client()), WithLimits(fastLimits))

	paths := make([]string, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries, err := f.FetchAndExtract(context.Background(), ts.URL+"/coe.zip")
			if assert.NoError(t, err) {
				paths[i] = entries["M02-COE.csv"]
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	sizes := make(map[int]bool)
	for _, p := range paths {
		require.NotEmpty(t, p)
		assert.Equal(t, "M02-COE.csv", filepath.Base(p))
		assert.False(t, seen[p], "path %s returned twice", p)
		seen[p] = true
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		sizes[len(data)] = true
	}
	assert.Len(t, sizes, runs)

	for _, p := range paths {
		require.NoError(t, f.Release(p))
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
	left, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestReleaseIgnoresPathsOutsideWorkDir(t *testing.T) {
	other := filepath.Join(t.TempDir(), "keep.csv")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	f := New(t.TempDir())
	require.NoError(t, f.Release(other))
	_, err := os.Stat(other)
	assert.NoError(t, err)
}

func TestExtractRejectsDuplicateFlattenedNames(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "dup.zip")
	require.NoError(t, os.WriteFile(archive, buildZip(t, map[string]string{
		"2023/M02-COE.csv": "month\n2023-01\n",
		"2024/M02-COE.csv": "month\n2024-01\n",
	}), 0o644))

	_, err := Extract(archive, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "M02-COE.csv")
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (s *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	s.bucket, s.key = aws.StringValue(in.Bucket), aws.StringValue(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s.body))}, nil
}

func TestDownloadFromS3(t *testing.T) {
	getter := &fakeS3{body: "month,bidding_no\n"}
	f := New(t.TempDir(), WithS3(getter), WithLimits(fastLimits))

	p, err := f.Download(context.Background(), "s3://mirror/datasets/coe.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "mirror", getter.bucket)
	assert.Equal(t, "datasets/coe.csv", getter.key)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "month,bidding_no\n", string(data))
}

func TestDownloadFromS3WithoutClient(t *testing.T) {
	f := New(t.TempDir(), WithLimits(fastLimits))
	_, err := f.Download(context.Background(), "s3://mirror/coe.csv", "")
	assert.Error(t, err)
}
