package models

import "fmt"

// ErrorKind classifies surfaced failures.
type ErrorKind string

const (
	KindResolutionAmbiguous       ErrorKind = "RESOLUTION_AMBIGUOUS"
	KindSourceUnavailable         ErrorKind = "SOURCE_UNAVAILABLE"
	KindNoEvidenceFound           ErrorKind = "NO_EVIDENCE_FOUND"
	KindRetentionExceeded         ErrorKind = "RETENTION_EXCEEDED"
	KindClassificationUnavailable ErrorKind = "CLASSIFICATION_UNAVAILABLE"
	KindDeadlineExceeded          ErrorKind = "DEADLINE_EXCEEDED"
)

// Marker records a non-fatal failure attached to a branch, cluster or stage.
type Marker struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage"`
	Scope   string    `json:"scope,omitempty"`
	Message string    `json:"message"`
}

func (m Marker) Error() string {
	if m.Scope == "" {
		return fmt.Sprintf("%s [%s]: %s", m.Stage, m.Kind, m.Message)
	}
	return fmt.Sprintf("%s/%s [%s]: %s", m.Stage, m.Scope, m.Kind, m.Message)
}
