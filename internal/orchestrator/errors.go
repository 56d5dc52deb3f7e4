package orchestrator

import "errors"

var (
	ErrConceptNotFound     = errors.New("concept not found")
	ErrConceptNotApproved  = errors.New("concept is not approved")
	ErrSVGVersionNotFound  = errors.New("svg version not found")
	ErrNoPendingApproval   = errors.New("no approval request is outstanding")
	ErrUnknownApprovalItem = errors.New("unknown approval item")
	ErrInvalidDecision     = errors.New("invalid approval decision")
	ErrEmptyApproval       = errors.New("approval request needs at least one item")
	ErrInvalidApprovalItem = errors.New("invalid approval item")
	ErrNotEarlierPhase     = errors.New("target phase is not earlier than the current phase")
	ErrNotExportPhase      = errors.New("svg can only be exported in the export phase")
	ErrExportDisabled      = errors.New("artifact export is not configured")
	ErrEvaluationDisabled  = errors.New("evaluation is not configured")
	ErrInvalidStatus       = errors.New("invalid approval status")
)
