package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidRequest is returned for job requests that fail local validation.
	ErrInvalidRequest  = errors.New("invalid job request")
	ErrMissingEndpoint = errors.New("processing backend URL is not configured")
	ErrNoToken         = errors.New("no authentication token available")
)

// JobKind identifies the media source of a job request.
type JobKind string

const (
	JobKindTV      JobKind = "tv"
	JobKindRadio   JobKind = "radio"
	JobKindYouTube JobKind = "youtube"
)

// ParseJobKind accepts the wire names of the three supported sources.
func ParseJobKind(value string) (JobKind, error) {
	switch kind := JobKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case JobKindTV, JobKindRadio, JobKindYouTube:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unknown job kind %q", ErrInvalidRequest, value)
	}
}

// JobRequest describes what the backend should process.
// SegmentID is set for tv and radio jobs, URL for youtube jobs.
type JobRequest struct {
	Kind      JobKind `json:"tipo_pauta"`
	SegmentID string  `json:"id_pauta,omitempty"`
	URL       string  `json:"youtube_url,omitempty"`
}

// NewJobRequest builds a request from a kind and a free-form reference,
// placing the trimmed reference in the field the kind selects.
func NewJobRequest(kind JobKind, reference string) (JobRequest, error) {
	req := JobRequest{Kind: kind}
	if kind == JobKindYouTube {
		req.URL = reference
	} else {
		req.SegmentID = reference
	}
	return req.Normalize()
}

// Normalize trims the reference, clears the field the kind does not use and
// rejects empty references.
func (r JobRequest) Normalize() (JobRequest, error) {
	switch r.Kind {
	case JobKindYouTube:
		url := strings.TrimSpace(r.URL)
		if url == "" {
			return JobRequest{}, fmt.Errorf("%w: youtube url is required", ErrInvalidRequest)
		}
		return JobRequest{Kind: r.Kind, URL: url}, nil
	case JobKindTV, JobKindRadio:
		id := strings.TrimSpace(r.SegmentID)
		if id == "" {
			return JobRequest{}, fmt.Errorf("%w: segment id is required", ErrInvalidRequest)
		}
		return JobRequest{Kind: r.Kind, SegmentID: id}, nil
	default:
		return JobRequest{}, fmt.Errorf("%w: unknown job kind %q", ErrInvalidRequest, r.Kind)
	}
}

// Reference returns whichever of SegmentID or URL the kind uses.
func (r JobRequest) Reference() string {
	if r.Kind == JobKindYouTube {
		return r.URL
	}
	return r.SegmentID
}

// Title is the heading shown while a job runs.
func (r JobRequest) Title() string {
	switch r.Kind {
	case JobKindTV:
		return "Processing TV segment " + r.SegmentID
	case JobKindRadio:
		return "Processing radio segment " + r.SegmentID
	case JobKindYouTube:
		return "Processing YouTube video"
	default:
		return "Processing..."
	}
}

// Progress is the last percent/message pair reported for the active job.
type Progress struct {
	Percent float64 `json:"progress"`
	Message string  `json:"message"`
}

// KeywordMatch is one client keyword found in the processed media.
type KeywordMatch struct {
	Client    string `json:"cliente"`
	Keyword   string `json:"palabra_clave"`
	MatchType string `json:"tipo"`
}

// Result is the structured output of a completed job.
type Result struct {
	Headline   string              `json:"titular"`
	Summary    string              `json:"resumen"`
	Entities   map[string][]string `json:"entidades"`
	Topics     []string            `json:"temas"`
	Matches    []KeywordMatch      `json:"coincidencias"`
	Transcript string              `json:"transcripcion"`
}

// ConnectionState tracks the transport, not the job.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionError        ConnectionState = "error"
)

// ErrorCode classifies failures surfaced to the user.
type ErrorCode string

const (
	ErrorCodeConfig       ErrorCode = "config"
	ErrorCodeAuth         ErrorCode = "auth"
	ErrorCodeTransport    ErrorCode = "transport"
	ErrorCodeNoConnection ErrorCode = "no_connection"
	ErrorCodeJob          ErrorCode = "job"
	ErrorCodeExport       ErrorCode = "export"
)

// Failure is the terminal error of the current attempt.
type Failure struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (f Failure) Error() string {
	return f.Message
}

var authFailureWords = map[string]bool{
	"token":        true,
	"401":          true,
	"unauthorized": true,
	"403":          true,
	"forbidden":    true,
}

// IndicatesAuthFailure reports whether a server error text points at an
// expired or rejected credential. Markers must appear as whole words, so
// "8192 tokens" does not count.
func IndicatesAuthFailure(message string) bool {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		if authFailureWords[word] {
			return true
		}
	}
	return false
}
