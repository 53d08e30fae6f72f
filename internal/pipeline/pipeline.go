package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/deployhook/internal/domain"
)

const tracerName = "github.com/tjfontaine/deployhook/internal/pipeline"

// Recorder persists the outcome of every pipeline run.
type Recorder interface {
	SaveDeployment(ctx context.Context, d *domain.Deployment) error
}

// Options configures a Pipeline. Zero values select the defaults.
type Options struct {
	Access      FileAccess
	Runner      ScriptRunner
	Recorder    Recorder
	Concurrency ConcurrencyPolicy
	// Timeout bounds script execution; 0 means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Pipeline validates build notifications and runs the matching project's
// deployment script. It is safe for concurrent use.
type Pipeline struct {
	projects ProjectLookup
	access   FileAccess
	runner   ScriptRunner
	recorder Recorder
	locks    *projectLocks
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a pipeline over the given project configuration.
func New(projects ProjectLookup, opts Options) *Pipeline {
	p := &Pipeline{
		projects: projects,
		access:   opts.Access,
		runner:   opts.Runner,
		recorder: opts.Recorder,
		locks:    newProjectLocks(opts.Concurrency),
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	if p.access == nil {
		p.access = OSAccess{}
	}
	if p.runner == nil {
		p.runner = NewShellRunner(defaultShell, defaultMaxOutputBytes)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run takes one notification body through every stage. It returns the
// deployment record (never nil) and, on failure, the first *domain.DeployError
// encountered.
func (p *Pipeline) Run(ctx context.Context, body []byte) (*domain.Deployment, error) {
	d := &domain.Deployment{
		ID:        uuid.New().String(),
		Stage:     domain.StagePending,
		ExitCode:  -1,
		StartedAt: p.now().UTC(),
	}

	ctx, span := p.tracer.Start(ctx, "deploy.pipeline", trace.WithAttributes(
		attribute.String("deploy.id", d.ID),
	))
	defer span.End()

	err := p.run(ctx, d, body)

	d.FinishedAt = p.now().UTC()
	d.Duration = d.FinishedAt.Sub(d.StartedAt)

	if err != nil {
		p.fail(ctx, d, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		d.Stage = domain.StageCompleted
		d.Status = domain.DeploymentCompleted
		p.logger.Info("deployment completed",
			slog.String("deployment_id", d.ID),
			slog.String("project", d.Project),
			slog.String("ref", d.Ref),
			slog.Duration("duration", d.Duration),
		)
		p.logger.Debug("deployment script output",
			slog.String("deployment_id", d.ID),
			slog.String("project", d.Project),
			slog.String("stdout", d.Stdout),
			slog.String("stderr", d.Stderr),
		)
	}

	p.record(ctx, d)

	return d, err
}

// run executes the stages in order and returns at the first failure.
func (p *Pipeline) run(ctx context.Context, d *domain.Deployment, body []byte) error {
	p.enter(d, domain.StageValidating)
	var n domain.BuildNotification
	err := p.traced(ctx, "deploy.validate", func(context.Context) error {
		var err error
		n, err = ValidateNotification(body)
		return err
	})
	if err != nil {
		return err
	}
	d.Project = n.Repository.Name
	d.Ref = n.Ref
	d.BuildStatus = n.BuildStatus

	p.enter(d, domain.StageResolving)
	var project domain.Project
	err = p.traced(ctx, "deploy.resolve", func(context.Context) error {
		var err error
		project, err = ResolveProject(n, p.projects)
		return err
	})
	if err != nil {
		return err
	}

	p.enter(d, domain.StageCheckingExistence)
	err = p.traced(ctx, "deploy.check_exists", func(context.Context) error {
		if err := p.access.Exists(project.Script); err != nil {
			return domain.ErrScriptNotFound(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.enter(d, domain.StageCheckingExecutable)
	err = p.traced(ctx, "deploy.check_executable", func(context.Context) error {
		if err := p.access.Executable(project.Script); err != nil {
			return domain.ErrScriptNotExecutable(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.enter(d, domain.StageExecuting)
	return p.traced(ctx, "deploy.execute", func(ctx context.Context) error {
		return p.execute(ctx, d, project)
	})
}

// execute runs the script under the project's lock. The script keeps running
// if the caller goes away; only the timeout stops it.
func (p *Pipeline) execute(ctx context.Context, d *domain.Deployment, project domain.Project) error {
	release, err := p.locks.acquire(ctx, project.Name)
	if err != nil {
		return err
	}
	defer release()

	execCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, p.timeout)
		defer cancel()
	}

	p.logger.Info("executing script",
		slog.String("deployment_id", d.ID),
		slog.String("project", project.Name),
		slog.String("script", project.Script),
	)

	result, err := p.runner.Run(execCtx, project.Script)
	d.ExitCode = result.ExitCode
	d.Stdout = result.Stdout
	d.Stderr = result.Stderr
	if err != nil {
		return domain.ErrExecutionFailed(err)
	}
	return nil
}

func (p *Pipeline) enter(d *domain.Deployment, next domain.Stage) {
	p.logger.Debug("deploy stage",
		slog.String("deployment_id", d.ID),
		slog.String("from", string(d.Stage)),
		slog.String("to", string(next)),
	)
	d.Stage = next
}

func (p *Pipeline) traced(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// fail fills in the failure fields of d. d.Stage keeps the stage that failed.
func (p *Pipeline) fail(ctx context.Context, d *domain.Deployment, err error) {
	d.Status = domain.DeploymentFailed

	var de *domain.DeployError
	if errors.As(err, &de) {
		d.ErrorKind = de.Kind
		d.ErrorMessage = de.Message
	} else {
		d.ErrorMessage = err.Error()
	}

	attrs := []slog.Attr{
		slog.String("deployment_id", d.ID),
		slog.String("project", d.Project),
		slog.String("ref", d.Ref),
		slog.String("stage", string(d.Stage)),
		slog.String("error_kind", string(d.ErrorKind)),
		slog.String("error", err.Error()),
	}

	if d.ErrorKind == domain.ErrorKindExecutionFailed {
		attrs = append(attrs,
			slog.Int("exit_code", d.ExitCode),
			slog.String("stdout", d.Stdout),
			slog.String("stderr", d.Stderr),
		)
		p.logger.LogAttrs(ctx, slog.LevelError, "deployment failed", attrs...)
		return
	}

	p.logger.LogAttrs(ctx, slog.LevelWarn, "deployment rejected", attrs...)
}

func (p *Pipeline) record(ctx context.Context, d *domain.Deployment) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.SaveDeployment(context.WithoutCancel(ctx), d); err != nil {
		p.logger.Error("failed to record deployment",
			slog.String("deployment_id", d.ID),
			slog.String("error", err.Error()),
		)
	}
}
