package domain

import "time"

// SuccessStatus is the only build_status that allows a deployment.
const SuccessStatus = "success"

// Repository identifies the repository a build ran for.
type Repository struct {
	Name string `json:"name"`
}

// BuildNotification is the inbound CI notification.
// Fields other than the ones below are accepted and ignored.
type BuildNotification struct {
	Ref         string     `json:"ref"`
	BuildStatus string     `json:"build_status"`
	Repository  Repository `json:"repository"`
}

// Project is the deployment configuration of a single repository.
type Project struct {
	Name   string `json:"name" koanf:"-"`
	Branch string `json:"branch" koanf:"branch"`
	Script string `json:"script" koanf:"script"`
}

// Stage is a state of the deploy pipeline.
type Stage string

const (
	StagePending            Stage = "pending"
	StageValidating         Stage = "validating"
	StageResolving          Stage = "resolving"
	StageCheckingExistence  Stage = "checking_existence"
	StageCheckingExecutable Stage = "checking_executable"
	StageExecuting          Stage = "executing"
	StageCompleted          Stage = "completed"
	StageFailed             Stage = "failed"
)

// DeploymentStatus is the terminal status of a recorded deployment.
type DeploymentStatus string

const (
	DeploymentCompleted DeploymentStatus = "completed"
	DeploymentFailed    DeploymentStatus = "failed"
)

// Deployment is the history record of one pipeline run.
type Deployment struct {
	ID           string           `json:"id"`
	Project      string           `json:"project"`
	Ref          string           `json:"ref"`
	BuildStatus  string           `json:"build_status"`
	Status       DeploymentStatus `json:"status"`
	Stage        Stage            `json:"stage"`
	ErrorKind    ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ExitCode     int              `json:"exit_code"`
	Stdout       string           `json:"stdout,omitempty"`
	Stderr       string           `json:"stderr,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	Duration     time.Duration    `json:"duration_ns"`
}

// ExecResult is the outcome of running a deployment script.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
