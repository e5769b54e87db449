package domain

import "errors"

var (
	ErrNothingToUpload        = errors.New("nothing to upload")
	ErrUploadFailed           = errors.New("upload failed")
	ErrRetentionFailed        = errors.New("retention failed")
	ErrLockHeld               = errors.New("another pgkeep run is in progress")
	ErrEmptyDataDirectory     = errors.New("server returned an empty data directory")
	ErrUnsupportedDestination = errors.New("unsupported destination")
	ErrOldFilesUnsupported    = errors.New("storage cannot filter files by age")
)

// FileError ties an error to the artifact name it happened on.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}
