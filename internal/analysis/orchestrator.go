package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-plant-analyzer/internal/analyzer"
	apperrors "go-plant-analyzer/internal/errors"
	"go-plant-analyzer/internal/metrics"
	"go-plant-analyzer/internal/observer"
	"go-plant-analyzer/pkg/models"
	"go-plant-analyzer/pkg/validation"
)

const (
	failurePrefix    = "Failed to analyze image: "
	subscriberBuffer = 16
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = apperrors.NewInternalError("orchestrator is closed", nil)

// Orchestrator owns the single request lifecycle: one selected photo, at most
// one analysis in flight, and the state the UI renders. It is safe for
// concurrent use.
type Orchestrator struct {
	backend   analyzer.Backend
	validator *validation.ImageValidator
	publisher *observer.EventPublisher
	timeout   time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	state     models.RequestState
	selection models.ImageInput
	// done is closed when the in-flight analysis reaches a terminal state.
	done   chan struct{}
	closed bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each analysis. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithValidator replaces the default non-empty check.
func WithValidator(v *validation.ImageValidator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithObserver registers an observer for every event.
func WithObserver(obs observer.Observer) Option {
	return func(o *Orchestrator) { o.publisher.Subscribe(obs) }
}

// New creates an idle orchestrator around backend.
func New(backend analyzer.Backend, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		backend:   backend,
		validator: validation.NewImageValidator(0),
		publisher: observer.NewEventPublisher(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = models.RequestState{
		Status:    models.StatusIdle,
		Backend:   backend.Name(),
		UpdatedAt: time.Now().UTC(),
	}
	return o
}

// Backend names the configured analysis backend.
func (o *Orchestrator) Backend() string {
	return o.backend.Name()
}

// Select stores img as the current photo and returns the state to idle,
// discarding any previous result or error.
func (o *Orchestrator) Select(img models.ImageInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.admitLocked(img); err != nil {
		return err
	}
	o.selection = img
	o.setLocked(models.StatusIdle, nil, "")
	o.publishLocked(observer.AnalysisEvent{
		EventType: observer.ImageSelected,
		Source:    img.Source,
	})
	return nil
}

// Submit starts analyzing img in the background and returns once the state
// is in_progress.
func (o *Orchestrator) Submit(img models.ImageInput) error {
	job, err := o.begin(img)
	if err != nil {
		return err
	}
	go func() {
		defer o.wg.Done()
		o.execute(o.baseCtx, job)
	}()
	return nil
}

// SubmitSelected submits the photo stored by Select.
func (o *Orchestrator) SubmitSelected() error {
	o.mu.Lock()
	img := o.selection
	o.mu.Unlock()

	if img.Empty() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.rejectLocked(metrics.ReasonValidation, img.Source)
		return apperrors.NewValidationError("No image selected", nil)
	}
	return o.Submit(img)
}

// Run analyzes img on the caller's goroutine. It goes through the same
// lifecycle as Submit and also ends early if ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, img models.ImageInput) (*models.AnalysisResult, error) {
	job, err := o.begin(img)
	if err != nil {
		return nil, err
	}
	defer o.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.baseCtx, cancel)
	defer stop()

	result, appErr := o.execute(ctx, job)
	if appErr != nil {
		return nil, appErr
	}
	return result.Clone(), nil
}

// State returns a snapshot safe to hand to other goroutines.
func (o *Orchestrator) State() models.RequestState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe streams the current state followed by every transition. A slow
// reader loses intermediate states but always receives the latest one.
// The returned func stops the stream and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan models.RequestState, func()) {
	sub := observer.NewChannelObserver(subscriberBuffer)

	o.mu.Lock()
	sub.Send(o.snapshotLocked())
	o.publisher.Subscribe(sub)
	o.mu.Unlock()

	var once sync.Once
	return sub.C(), func() {
		once.Do(func() {
			o.publisher.Unsubscribe(sub)
			sub.Close()
		})
	}
}

// Wait blocks until no analysis is in progress or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) (models.RequestState, error) {
	for {
		o.mu.Lock()
		if o.state.Status != models.StatusInProgress {
			s := o.snapshotLocked()
			o.mu.Unlock()
			return s, nil
		}
		done := o.done
		o.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return o.State(), ctx.Err()
		}
	}
}

// Close cancels any in-flight analysis, which then ends failed, and waits
// for it to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

type run struct {
	id      string
	img     models.ImageInput
	started time.Time
}

func (o *Orchestrator) begin(img models.ImageInput) (run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.admitLocked(img); err != nil {
		return run{}, err
	}

	r := run{id: uuid.NewString(), img: img, started: time.Now()}
	o.selection = img
	o.wg.Add(1)
	o.done = make(chan struct{})
	o.setLocked(models.StatusInProgress, nil, "")
	o.publishLocked(observer.AnalysisEvent{
		EventType:  observer.AnalysisStarted,
		AnalysisID: r.id,
		Source:     img.Source,
	})
	return r, nil
}

// admitLocked applies the guards shared by Select and begin.
func (o *Orchestrator) admitLocked(img models.ImageInput) error {
	if o.closed {
		return ErrClosed
	}
	if o.state.Status == models.StatusInProgress {
		o.rejectLocked(metrics.ReasonBusy, img.Source)
		return apperrors.NewBusyError()
	}
	if err := o.validator.ValidateImage(img); err != nil {
		o.rejectLocked(metrics.ReasonValidation, img.Source)
		return err
	}
	return nil
}

// execute calls the backend and records exactly one terminal transition.
func (o *Orchestrator) execute(ctx context.Context, r run) (result *models.AnalysisResult, appErr *apperrors.AppError) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			result, appErr = nil, apperrors.NewInternalError(fmt.Sprintf("backend panicked: %v", p), nil)
		}
		o.finish(r, result, appErr)
	}()

	res, err := o.backend.Analyze(ctx, r.img)
	if err != nil {
		return nil, classify(err)
	}
	if res == nil {
		return nil, apperrors.NewInternalError("backend returned no result", nil)
	}
	return res, nil
}

func (o *Orchestrator) finish(r run, result *models.AnalysisResult, appErr *apperrors.AppError) {
	o.mu.Lock()
	defer o.mu.Unlock()

	event := observer.AnalysisEvent{
		AnalysisID: r.id,
		Source:     r.img.Source,
		Elapsed:    time.Since(r.started),
	}
	if appErr != nil {
		o.setLocked(models.StatusFailed, nil, FailureMessage(appErr))
		event.EventType = observer.AnalysisFailed
	} else {
		o.setLocked(models.StatusSucceeded, result.Clone(), "")
		event.EventType = observer.AnalysisSucceeded
	}
	close(o.done)
	o.publishLocked(event)
}

// FailureMessage is the text stored in a failed state.
func FailureMessage(err error) string {
	return failurePrefix + apperrors.UserMessage(err)
}

// classify maps backend errors onto the AppError taxonomy.
func classify(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("analysis timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewInternalError("analysis cancelled", err)
	default:
		return apperrors.NewInternalError(err.Error(), err)
	}
}

func (o *Orchestrator) setLocked(status models.Status, result *models.AnalysisResult, msg string) {
	o.state = models.RequestState{
		Status:    status,
		Result:    result,
		Error:     msg,
		Backend:   o.backend.Name(),
		HasImage:  !o.selection.Empty(),
		UpdatedAt: time.Now().UTC(),
	}
}

func (o *Orchestrator) snapshotLocked() models.RequestState {
	s := o.state
	s.Result = s.Result.Clone()
	return s
}

func (o *Orchestrator) rejectLocked(reason, source string) {
	o.publisher.NotifyObservers(o.baseCtx, observer.AnalysisEvent{
		EventType: observer.SubmissionRejected,
		Timestamp: time.Now().UTC(),
		Backend:   o.backend.Name(),
		Source:    source,
		Reason:    reason,
	})
}

// publishLocked stamps and sends a transition event. Holding o.mu keeps
// subscribers in transition order.
func (o *Orchestrator) publishLocked(event observer.AnalysisEvent) {
	event.Timestamp = o.state.UpdatedAt
	event.Backend = o.backend.Name()
	event.State = o.snapshotLocked()
	o.publisher.NotifyObservers(o.baseCtx, event)
}
