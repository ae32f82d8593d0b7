// Package workflow drives one capture-to-package session: capture or upload
// media, review it, analyze it into a skill package, and manage the result
// together with the history of earlier results.
package workflow

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/analysis"
	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// ErrNotDisplayed is returned when committing a package that is not the
// one currently displayed.
var ErrNotDisplayed = errors.New("package is not displayed")

// ErrNoRecorder is returned by StartCapture when no recorder is configured.
var ErrNoRecorder = errors.New("screen recording is not available")

// Config wires a Controller to its collaborators.
type Config struct {
	Generator analysis.Generator
	History   *history.Store
	// Recorder is optional; without it only uploads are possible.
	Recorder capture.Recorder
	// AnalysisTimeout bounds an analysis call. Zero leaves the bound to the
	// generator.
	AnalysisTimeout time.Duration
	Now             func() time.Time
}

// Controller is the workflow state machine. Every operation checks the
// transition table first and fails with *TransitionError when the current
// state does not expose it. Blocking work (capture, analysis) runs without
// holding the controller lock, so state queries stay responsive.
type Controller struct {
	mu sync.Mutex

	generator analysis.Generator
	history   *history.Store
	recorder  capture.Recorder
	timeout   time.Duration
	now       func() time.Time

	state    State
	artifact *skill.MediaArtifact
	notes    string
	current  *skill.GeneratedSkill
	lastErr  error

	session       capture.Session
	captureDone   chan struct{}
	stopRequested bool

	listeners []func(*skill.GeneratedSkill)
	// display counts identity changes of current; delivered is the last
	// count listeners were told about. notifyMu orders deliveries.
	display   uint64
	delivered uint64
	notifyMu  sync.Mutex
}

// New creates a controller in the Idle state.
func New(cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		generator: cfg.Generator,
		history:   cfg.History,
		recorder:  cfg.Recorder,
		timeout:   cfg.AnalysisTimeout,
		now:       now,
		state:     Idle,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Actions returns the entry points exposed in the current state.
func (c *Controller) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Actions()
}

// Artifact returns the current media artifact, if any.
func (c *Controller) Artifact() *skill.MediaArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// Notes returns the free-text notes submitted with the next analysis.
func (c *Controller) Notes() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes
}

// Current returns a copy of the displayed package, or nil.
func (c *Controller) Current() *skill.GeneratedSkill {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSkill(c.current)
}

// LastError returns the failure of the last capture or analysis, cleared
// when the workflow moves on.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// History returns the history entries, newest first.
func (c *Controller) History() []skill.GeneratedSkill {
	return c.history.List()
}

// OnDisplayChange registers f to be called with the newly displayed
// package, or nil, whenever the displayed package changes identity.
// Listeners are called one at a time in the order of the changes and must
// not change the display themselves.
func (c *Controller) OnDisplayChange(f func(*skill.GeneratedSkill)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, f)
}

// CaptureDone returns a channel closed when the running capture ended, or
// nil when no capture is running.
func (c *Controller) CaptureDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureDone
}

// check must be called with c.mu held.
func (c *Controller) check(a Action) error {
	if !c.state.Allows(a) {
		return &TransitionError{State: c.state, Action: a}
	}
	return nil
}

// StartCapture moves to Recording and starts the recorder. If the recorder
// cannot start the controller returns to Idle: a declined permission
// returns nil, any other failure is returned.
func (c *Controller) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	if err := c.check(ActionStartCapture); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.recorder == nil {
		c.mu.Unlock()
		return ErrNoRecorder
	}
	c.state = Recording
	c.artifact = nil
	c.notes = ""
	c.lastErr = nil
	c.stopRequested = false
	done := make(chan struct{})
	c.captureDone = done
	c.mu.Unlock()

	s, err := c.recorder.Start(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.captureDone == done
	if err != nil {
		if current {
			c.state = Idle
			c.captureDone = nil
		}
		close(done)
		if capture.Declined(err) {
			logger.G(ctx).WithError(err).Info("capture declined")
			return nil
		}
		c.lastErr = err
		logger.G(ctx).WithError(err).Warn("capture failed to start")
		return err
	}

	if !current {
		// Closed while the recorder was starting.
		close(done)
		go abandon(s)
		return nil
	}
	c.session = s
	if c.stopRequested {
		s.Stop()
	}
	go c.awaitCapture(ctx, s, done)
	return nil
}

func abandon(s capture.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = s.Wait(ctx)
}

// awaitCapture turns the terminal result of s into a transition. It is the
// only place a session result is consumed, so the session is released on
// every path.
func (c *Controller) awaitCapture(ctx context.Context, s capture.Session, done chan struct{}) {
	defer close(done)
	log := logger.G(ctx)

	artifact, err := s.Wait(context.WithoutCancel(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}
	c.session = nil
	c.captureDone = nil

	if err != nil {
		c.state = Idle
		if !capture.Declined(err) {
			c.lastErr = err
		}
		log.WithError(err).Warn("capture ended without media")
		return
	}

	c.artifact = artifact
	c.state = Preview
	log.WithField("artifact", artifact.String()).Info("capture complete")
}

// StopCapture asks the running capture to finish and waits for it. It
// returns the captured artifact, or the capture failure after which the
// controller is back in Idle.
func (c *Controller) StopCapture(ctx context.Context) (*skill.MediaArtifact, error) {
	c.mu.Lock()
	if err := c.check(ActionStopCapture); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	s, done := c.session, c.captureDone
	if s == nil {
		c.stopRequested = true
	}
	c.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	return c.WaitCapture(ctx, done)
}

// WaitCapture waits until the capture behind done ended and reports its
// outcome. ctx only bounds the wait.
func (c *Controller) WaitCapture(ctx context.Context, done <-chan struct{}) (*skill.MediaArtifact, error) {
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Preview && c.artifact != nil {
		return c.artifact, nil
	}
	if c.lastErr != nil {
		return nil, c.lastErr
	}
	return nil, &capture.CaptureError{Kind: capture.PermissionDenied}
}

// Upload makes artifact the current media and moves to Preview.
func (c *Controller) Upload(artifact *skill.MediaArtifact) error {
	if artifact == nil {
		return errors.New("upload requires media")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ActionUpload); err != nil {
		return err
	}
	c.artifact = artifact
	c.notes = ""
	c.lastErr = nil
	c.state = Preview
	return nil
}

// Discard drops the current media and returns to Idle.
func (c *Controller) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ActionDiscard); err != nil {
		return err
	}
	c.artifact = nil
	c.notes = ""
	c.state = Idle
	return nil
}

// SetNotes sets the free-text notes sent with the media.
func (c *Controller) SetNotes(notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ActionSetNotes); err != nil {
		return err
	}
	c.notes = notes
	return nil
}

// Analyze submits the current media and notes. The call is not cancelled
// with ctx; once submitted the controller waits for success or failure.
// Every failure moves the controller to Error with the media retained.
func (c *Controller) Analyze(ctx context.Context) (*skill.GeneratedSkill, error) {
	c.mu.Lock()
	if err := c.check(ActionAnalyze); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	artifact, notes := c.artifact, c.notes
	c.state = Analyzing
	c.lastErr = nil
	c.mu.Unlock()

	log := logger.G(ctx).WithField("artifact", artifact.String())
	log.Info("analyzing media")

	actx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, c.timeout)
		defer cancel()
	}
	res, err := c.generator.Generate(actx, artifact.Data(), artifact.MIMEType(), notes)
	if err == nil && res == nil {
		err = &analysis.Error{Kind: analysis.KindEmptyResponse, Err: errors.New("generator returned no result")}
	}

	c.mu.Lock()
	if err != nil {
		c.state = Error
		c.lastErr = err
		c.mu.Unlock()
		log.WithField("kind", analysis.KindOf(err)).WithError(err).Warn("analysis failed")
		return nil, err
	}

	generated := skill.NewGeneratedSkill(res.Package, res.Raw, c.now().UTC())
	if err := c.history.Prepend(ctx, generated); err != nil {
		log.WithError(err).Warn("generated skill kept in memory only")
	}
	c.current = &generated
	c.display++
	c.artifact = nil
	c.notes = ""
	c.state = Success
	c.mu.Unlock()

	log.WithField("id", generated.ID).WithField("slug", generated.Package.Slug).Info("skill generated")
	c.notify()
	return cloneSkill(&generated), nil
}

// Dismiss acknowledges an analysis failure and returns to Preview with the
// same media and notes.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ActionDismiss); err != nil {
		return err
	}
	c.lastErr = nil
	c.state = Preview
	return nil
}

// SelectFromHistory displays the history entry with the given id.
func (c *Controller) SelectFromHistory(id string) (*skill.GeneratedSkill, error) {
	c.mu.Lock()
	if err := c.check(ActionSelectFromHistory); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	g, err := c.history.Get(id)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	changed := c.current == nil || c.current.ID != g.ID
	c.current = &g
	if changed {
		c.display++
	}
	c.state = Success
	c.mu.Unlock()

	if changed {
		c.notify()
	}
	return cloneSkill(&g), nil
}

// StartNew clears the displayed package and returns to Idle.
func (c *Controller) StartNew() error {
	c.mu.Lock()
	if err := c.check(ActionStartNew); err != nil {
		c.mu.Unlock()
		return err
	}
	c.current = nil
	c.display++
	c.state = Idle
	c.mu.Unlock()

	c.notify()
	return nil
}

// DeleteFromHistory removes an entry. Deleting the displayed package
// returns Success to Idle.
func (c *Controller) DeleteFromHistory(ctx context.Context, id string) error {
	c.mu.Lock()
	if err := c.check(ActionDeleteFromHistory); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.history.Remove(ctx, id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.mu.Unlock()
			return err
		}
		logger.G(ctx).WithError(err).WithField("id", id).Warn("history deletion kept in memory only")
	}

	cleared := c.current != nil && c.current.ID == id
	if cleared {
		c.current = nil
		c.display++
		if c.state == Success {
			c.state = Idle
		}
	}
	c.mu.Unlock()

	if cleared {
		c.notify()
	}
	return nil
}

// CommitEdit makes pkg the canonical package of the displayed entry and
// updates its history entry in place.
func (c *Controller) CommitEdit(ctx context.Context, id string, pkg skill.SkillPackage) (*skill.GeneratedSkill, error) {
	if err := pkg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(ActionCommitEdit); err != nil {
		return nil, err
	}
	if c.current == nil || c.current.ID != id {
		return nil, errors.Wrapf(ErrNotDisplayed, "id %s", id)
	}

	updated, err := c.history.Replace(ctx, id, pkg)
	if errors.Is(err, history.ErrNotFound) {
		// The entry was deleted from under the display; keep the edit visible.
		updated = c.current.Clone()
		updated.Package = pkg.Clone()
	} else if err != nil {
		logger.G(ctx).WithError(err).WithField("id", id).Warn("edit kept in memory only")
	}
	c.current = &updated
	return cloneSkill(&updated), nil
}

// Close abandons a running capture, releasing its recorder and temporary
// media, and waits for the release to finish.
func (c *Controller) Close() error {
	c.mu.Lock()
	s, done := c.session, c.captureDone
	c.session = nil
	c.captureDone = nil
	if c.state == Recording {
		c.state = Idle
	}
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	abandon(s)
	if done != nil {
		<-done
	}
	return nil
}

// notify delivers the package displayed now. A delivery overtaken by a
// later change is skipped, so listeners always end on the current display.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.display == c.delivered {
		c.mu.Unlock()
		return
	}
	c.delivered = c.display
	g := c.current
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, f := range listeners {
		f(cloneSkill(g))
	}
}

func cloneSkill(g *skill.GeneratedSkill) *skill.GeneratedSkill {
	if g == nil {
		return nil
	}
	c := g.Clone()
	return &c
}
