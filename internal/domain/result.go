package domain

import (
	"strings"
	"time"
)

// StepResult is the outcome of one backup kind.
type StepResult struct {
	Kind     ArtifactKind
	Artifact *Artifact
	Err      error
	Started  time.Time
	Finished time.Time
}

// NewStepResult starts a result for the given kind.
func NewStepResult(kind ArtifactKind, started time.Time) StepResult {
	return StepResult{Kind: kind, Started: started}
}

// Succeed returns a copy of r marked successful with the artifact.
func (r StepResult) Succeed(artifact Artifact, finished time.Time) StepResult {
	r.Artifact = &artifact
	r.Err = nil
	r.Finished = finished
	return r
}

// Fail returns a copy of r marked failed.
func (r StepResult) Fail(err error, finished time.Time) StepResult {
	r.Artifact = nil
	r.Err = err
	r.Finished = finished
	return r
}

func (r StepResult) Succeeded() bool {
	return r.Err == nil && r.Artifact != nil
}

func (r StepResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// BackupRunResult is the outcome of both backup kinds for one invocation.
// It is built once and passed by value.
type BackupRunResult struct {
	Host      string
	Database  string
	Timestamp time.Time
	Logical   StepResult
	Physical  StepResult
}

func (r BackupRunResult) steps() []StepResult {
	return []StepResult{r.Logical, r.Physical}
}

// Failed is the aggregate failure flag.
func (r BackupRunResult) Failed() bool {
	return len(r.FailedKinds()) > 0
}

func (r BackupRunResult) FailedKinds() []ArtifactKind {
	var kinds []ArtifactKind
	for _, step := range r.steps() {
		if !step.Succeeded() {
			kinds = append(kinds, step.Kind)
		}
	}
	return kinds
}

// FailedSteps returns the steps that did not succeed, logical first.
func (r BackupRunResult) FailedSteps() []StepResult {
	var failed []StepResult
	for _, step := range r.steps() {
		if !step.Succeeded() {
			failed = append(failed, step)
		}
	}
	return failed
}

// Artifacts returns the upload-eligible artifacts.
func (r BackupRunResult) Artifacts() []Artifact {
	var artifacts []Artifact
	for _, step := range r.steps() {
		if step.Succeeded() {
			artifacts = append(artifacts, *step.Artifact)
		}
	}
	return artifacts
}

func (r BackupRunResult) DateStamp() string {
	return r.Timestamp.Format(DateLayout)
}

func (r BackupRunResult) Stamp() string {
	return r.Timestamp.Format(TimestampLayout)
}

func JoinKinds(kinds []ArtifactKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

type UploadResult struct {
	Destination string
	Uploaded    []string
	Failures    []FileError
}

func (r UploadResult) Succeeded() bool {
	return len(r.Failures) == 0 && len(r.Uploaded) > 0
}

type RetentionResult struct {
	Scanned       int // aged entries, before the extension filter
	Matched       int
	Deleted       []string
	Failures      []FileError
	RemoteDeleted []string
}

// Stage names the last phase a run reached.
type Stage string

const (
	StageInit      Stage = "init"
	StageBackup    Stage = "backup"
	StageUpload    Stage = "upload"
	StageRetention Stage = "retention"
	StageDone      Stage = "done"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// RunReport summarises one orchestrated run.
type RunReport struct {
	Backup    BackupRunResult
	Upload    *UploadResult
	Retention *RetentionResult
	Stage     Stage
	ExitCode  int
	Err       error
}

func (r RunReport) Success() bool {
	return r.ExitCode == ExitSuccess
}
