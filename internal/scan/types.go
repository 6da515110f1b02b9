package scan

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrEmptyUsername is returned when a scan is started without a username.
var ErrEmptyUsername = errors.New("username is empty")

// Outcome is the classification of a single probe.
type Outcome int

const (
	Indeterminate Outcome = iota
	Exists
	DoesNotExist
)

func (o Outcome) String() string {
	switch o {
	case Exists:
		return "exists"
	case DoesNotExist:
		return "does-not-exist"
	default:
		return "indeterminate"
	}
}

type Mode int

const (
	Discover Mode = iota
	Availability
)

func (m Mode) String() string {
	if m == Availability {
		return "availability"
	}
	return "discover"
}

// Label is the display name of what the mode collects.
func (m Mode) Label() string {
	if m == Availability {
		return "Available"
	}
	return "Found"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discover":
		return Discover, nil
	case "availability", "available":
		return Availability, nil
	default:
		return Discover, errors.Errorf("unknown mode %q (want discover or availability)", s)
	}
}

type Status string

const (
	StatusFound     Status = "found"
	StatusNotFound  Status = "not_found"
	StatusTaken     Status = "taken"
	StatusAvailable Status = "available"
)

// Record is one qualifying result. It is never modified after creation.
type Record struct {
	Name   string `json:"name" yaml:"name"`
	URL    string `json:"url" yaml:"url"`
	Status Status `json:"status" yaml:"status"`
}

// Probe is the raw result of checking one platform.
type Probe struct {
	Platform   string
	ProfileURL string
	RequestURL string
	StatusCode int
	Outcome    Outcome
	Err        error
	Elapsed    time.Duration
}

// State is the per-session scan progress. Counts only grow and results are
// only appended while a scan runs.
type State struct {
	Total   int
	Scanned int
	Results []Record
}

type Config struct {
	UserAgent    string
	Delay        time.Duration
	MaxBodyBytes int64
	// RegexCheck skips platforms whose "regexCheck" rejects the username.
	// Skipped platforms are Indeterminate and never reach the results.
	RegexCheck bool
}

const (
	DefaultDelay        = 50 * time.Millisecond
	DefaultMaxBodyBytes = 64 << 10
)
