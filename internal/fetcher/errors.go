package fetcher

import (
	"fmt"
	"strings"
)

// DownloadError is a network or I/O failure fetching a source.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// MissingEntryError reports that an archive does not contain the expected file.
type MissingEntryError struct {
	Expected string
	Found    []string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("archive entry %q not found, archive contains [%s]", e.Expected, strings.Join(e.Found, ", "))
}
