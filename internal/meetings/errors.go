package meetings

import (
	"errors"
	"fmt"
)

// Domain failures mapped to 4xx responses by the HTTP layer.
var (
	ErrMeetingNotFound     = errors.New("meeting_not_found")
	ErrBlockNotFound       = errors.New("block_not_found")
	ErrRevisionNotFound    = errors.New("revision_not_found")
	ErrParentNotInMeeting  = errors.New("parent_not_in_meeting")
	ErrNewParentNotInMeet  = errors.New("new_parent_not_in_meeting")
	ErrBlockNotInMeeting   = errors.New("block_not_in_meeting")
	ErrMissingFileURL      = errors.New("file_url_required")
	ErrMissingMeetingTitle = errors.New("title_required")
)

// VersionConflictError is returned when a caller's expected version does
// not match the stored block version. Current carries the server-side state
// the caller must re-read before retrying.
type VersionConflictError struct {
	BlockID int64
	Current int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version_conflict: block %d is at version %d", e.BlockID, e.Current)
}

// ServiceError wraps infrastructure failures with a stable operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable machine-readable error code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
