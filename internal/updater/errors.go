package updater

import (
	"errors"
	"fmt"
)

// Kind classifies why an update failed.
type Kind string

const (
	KindDownload         Kind = "download"
	KindArchiveIntegrity Kind = "archive_integrity"
	KindParse            Kind = "parse"
	KindStore            Kind = "store"
)

// Phase names a step of an update run.
type Phase string

const (
	PhaseAcquire Phase = "acquire"
	PhaseParse   Phase = "parse"
	PhaseDiff    Phase = "diff"
	PhaseInsert  Phase = "insert"
	PhaseCommit  Phase = "commit"
)

// Error is returned by Update with the failing phase and table attached.
type Error struct {
	Kind  Kind
	Table string
	Phase Phase
	// Path is the local file being processed, when known.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("update %s: %s (%s)", e.Table, e.Phase, e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an update error, or "" if err is not one.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}
