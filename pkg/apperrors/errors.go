package apperrors

import "errors"

var (
	// ErrNotFound means the core fetch found no resource for the given id.
	// Fatal to that fetch; surfaced to the caller as "no data".
	ErrNotFound = errors.New("resource not found")

	// ErrStageFailed means a secondary fetch stage (keywords, view
	// associations, recommendations) failed. Recovered locally as an empty
	// result for that stage; logged, never surfaced.
	ErrStageFailed = errors.New("fetch stage failed")

	// ErrValidation means form validation rejected the current field values.
	// Save is not attempted while this holds.
	ErrValidation = errors.New("validation failed")

	// ErrPropertyUnresolved means a logical field cannot be mapped to any
	// property identifier for the active template. The field is treated as
	// non-editable and omitted from mutations.
	ErrPropertyUnresolved = errors.New("property unresolved for template")

	// ErrSaveFailed means the store rejected a create or update. Form state
	// is preserved so the user can retry.
	ErrSaveFailed = errors.New("save rejected by store")

	// ErrMediaUpload means an individual file failed to upload after the
	// resource was created. Logged and skipped; the created resource is not
	// rolled back.
	ErrMediaUpload = errors.New("media upload failed")

	// ErrSubmitInProgress means a save is already running for this session.
	ErrSubmitInProgress = errors.New("submit already in progress")

	// ErrPickerUnavailable means the session has no resource selection
	// collaborator installed, so reference fields can only be set directly.
	ErrPickerUnavailable = errors.New("no picker configured")
)
