package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ecohearing/EcoHearing/internal/models"
)

// Phase is the tagged state of a hearing session. Responses are only
// accepted while awaiting one; anything else is a caller error, not a
// silent no-op.
type Phase string

const (
	PhaseNotStarted       Phase = "NOT_STARTED"
	PhasePresenting       Phase = "PRESENTING"
	PhaseAwaitingResponse Phase = "AWAITING_RESPONSE"
	PhaseCompleted        Phase = "COMPLETED"
)

// DefaultPacing is the presentation delay between an accepted response and
// the next prompt.
const DefaultPacing = 600 * time.Millisecond

// Option configures a Controller.
type Option func(*Controller)

// WithPacing overrides the presentation delay.
func WithPacing(d time.Duration) Option {
	return func(c *Controller) { c.pacing = d }
}

// WithTimer injects the Timer used for pacing delays.
func WithTimer(t Timer) Option {
	return func(c *Controller) { c.timer = t }
}

// WithOnComplete registers a hook invoked once with the canonical payload
// when the session completes.
func WithOnComplete(fn func(models.Payload)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// Controller owns the state of one hearing session: the current phase and
// step cursor, the accepted answers, and the append-only exchange log. All
// state is discarded by Reset and nothing scheduled before a reset may
// fire after it.
type Controller struct {
	mu     sync.Mutex
	steps  []models.Step
	timer  Timer
	pacing time.Duration

	phase           Phase
	index           int
	answers         map[int]models.Answer
	log             []models.ExchangeEntry
	nextEntryID     int64
	lastHint        string
	addressFragment string
	payload         *models.Payload

	// epoch fences timer callbacks: Reset bumps it so a stale callback
	// scheduled before the reset is dropped on arrival.
	epoch        int
	pendingTimer string

	onComplete func(models.Payload)
}

// NewController creates a session controller over the given step
// catalogue.
func NewController(steps []models.Step, opts ...Option) *Controller {
	c := &Controller{
		steps:   steps,
		pacing:  DefaultPacing,
		phase:   PhaseNotStarted,
		answers: make(map[int]models.Answer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timer == nil {
		c.timer = NewSimpleTimer()
	}
	return c
}

// Start schedules the presentation of the first step after the pacing
// delay.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.phase != PhaseNotStarted {
		c.mu.Unlock()
		return fmt.Errorf("cannot start session in phase %s", c.phase)
	}
	c.phase = PhasePresenting
	epoch := c.epoch
	c.mu.Unlock()

	slog.Debug("Controller starting hearing session", "steps", len(c.steps))
	c.schedulePresent(epoch)
	return nil
}

// SelectOption accepts the selected option for the current choice or
// single-choice step.
func (c *Controller) SelectOption(stepID int, option string) error {
	c.mu.Lock()
	step, err := c.currentLocked(stepID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	choice, ok := step.(models.ChoiceStep)
	if !ok {
		c.mu.Unlock()
		return models.ErrWrongInputMode
	}
	if !choice.Offers(option) {
		c.mu.Unlock()
		return models.ErrUnknownOption
	}
	epoch, done := c.acceptLocked(models.Answer{Text: option}, option)
	c.mu.Unlock()

	c.afterAccept(epoch, done)
	return nil
}

// SubmitText proposes a typed string for the current free-text step. A
// validator rejection keeps the session on the same step and returns a
// ValidationError carrying the hint; nothing is appended to the log.
func (c *Controller) SubmitText(stepID int, text string) error {
	c.mu.Lock()
	step, err := c.currentLocked(stepID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ts, ok := step.(models.TextStep)
	if !ok {
		c.mu.Unlock()
		return models.ErrWrongInputMode
	}
	if ts.Validate != nil && !ts.Validate(text) {
		hint := ts.RejectHint
		if hint == "" {
			hint = GenericHint
		}
		c.lastHint = hint
		c.mu.Unlock()
		slog.Debug("Controller rejected text response", "step", stepID)
		return &models.ValidationError{StepID: stepID, Hint: hint}
	}
	epoch, done := c.acceptLocked(models.Answer{Text: text}, text)
	c.mu.Unlock()

	c.afterAccept(epoch, done)
	return nil
}

// SubmitFile attaches a file handle to the current file step. An empty
// handle is refused without any state change.
func (c *Controller) SubmitFile(stepID int, file models.FileHandle) error {
	c.mu.Lock()
	step, err := c.currentLocked(stepID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if _, ok := step.(models.FileStep); !ok {
		c.mu.Unlock()
		return models.ErrWrongInputMode
	}
	if file.Name == "" {
		c.mu.Unlock()
		return models.ErrNoFileSelected
	}
	display := "ファイルをアップロードしました: " + file.Name
	epoch, done := c.acceptLocked(models.Answer{File: &file}, display)
	c.mu.Unlock()

	c.afterAccept(epoch, done)
	return nil
}

// Reset discards all session state and returns to NotStarted. Pending
// pacing timers are cancelled so no stale prompt appears afterwards.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	pending := c.pendingTimer
	c.pendingTimer = ""
	c.phase = PhaseNotStarted
	c.index = 0
	c.answers = make(map[int]models.Answer)
	c.log = nil
	c.nextEntryID = 0
	c.lastHint = ""
	c.addressFragment = ""
	c.payload = nil
	c.mu.Unlock()

	if pending != "" {
		c.timer.Cancel(pending)
	}
	slog.Debug("Controller reset session")
}

// Phase returns the current session phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// CurrentStep returns the step the session is on, if it is presenting one
// or awaiting its response.
func (c *Controller) CurrentStep() (models.Step, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhasePresenting && c.phase != PhaseAwaitingResponse {
		return nil, false
	}
	return c.steps[c.index], true
}

// Log returns a copy of the exchange log.
func (c *Controller) Log() []models.ExchangeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ExchangeEntry, len(c.log))
	copy(out, c.log)
	return out
}

// Answers returns a copy of the accepted answers keyed by step id.
func (c *Controller) Answers() map[int]models.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]models.Answer, len(c.answers))
	for id, a := range c.answers {
		out[id] = a
	}
	return out
}

// LastHint returns the hint from the most recent validation rejection, or
// "" if the last proposal was accepted.
func (c *Controller) LastHint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHint
}

// Payload returns the canonical payload of a completed session.
func (c *Controller) Payload() (models.Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseCompleted || c.payload == nil {
		return models.Payload{}, models.ErrNotCompleted
	}
	return *c.payload, nil
}

// currentLocked checks that a response is allowed right now and targets
// the current step.
func (c *Controller) currentLocked(stepID int) (models.Step, error) {
	if c.phase != PhaseAwaitingResponse {
		return nil, models.ErrNotAwaitingResponse
	}
	step := c.steps[c.index]
	if step.ID() != stepID {
		return nil, fmt.Errorf("%w: got %d, current is %d", models.ErrStepMismatch, stepID, step.ID())
	}
	return step, nil
}

// acceptLocked records the accepted answer, appends the user entry, runs
// the step's side effect, and advances the cursor. It returns the epoch to
// schedule the next presentation under, and whether the session completed.
func (c *Controller) acceptLocked(answer models.Answer, display string) (int, bool) {
	step := c.steps[c.index]
	c.appendLocked(models.ExchangeEntry{Role: models.RoleUser, Text: display})
	c.answers[step.ID()] = answer
	c.lastHint = ""

	if step.ID() == StepPostalCode {
		c.addressFragment = LookupAddress(answer.Text)
		slog.Debug("Controller auto-filled address", "fragment", c.addressFragment)
	}

	c.index++
	if c.index >= len(c.steps) {
		c.phase = PhaseCompleted
		payload := BuildPayload(c.answers, c.addressFragment)
		c.payload = &payload
		slog.Info("Controller hearing completed", "answers", len(c.answers))
		return c.epoch, true
	}
	c.phase = PhasePresenting
	return c.epoch, false
}

// afterAccept runs outside the lock: schedules the next prompt, or fires
// the completion hook.
func (c *Controller) afterAccept(epoch int, done bool) {
	if done {
		if c.onComplete != nil {
			if payload, err := c.Payload(); err == nil {
				c.onComplete(payload)
			}
		}
		return
	}
	c.schedulePresent(epoch)
}

// schedulePresent queues the presentation of the current step after the
// pacing delay, fenced by epoch.
func (c *Controller) schedulePresent(epoch int) {
	id, err := c.timer.ScheduleAfter(c.pacing, func() { c.present(epoch) })
	if err != nil {
		slog.Error("Controller failed to schedule presentation", "error", err)
		return
	}
	c.mu.Lock()
	if c.epoch == epoch {
		c.pendingTimer = id
	} else {
		// a reset won the race; make sure the orphan never fires
		defer c.timer.Cancel(id)
	}
	c.mu.Unlock()
}

// present appends the system entry for the current step and starts
// awaiting its response. Stale callbacks from before a reset are dropped.
func (c *Controller) present(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.phase != PhasePresenting {
		slog.Debug("Controller dropping stale presentation", "epoch", epoch)
		return
	}
	step := c.steps[c.index]
	entry := models.ExchangeEntry{Role: models.RoleSystem, Text: step.Prompt()}
	switch s := step.(type) {
	case models.ChoiceStep:
		entry.Annotation = s.Annotation
	case models.TextStep:
		entry.Supplement = s.Supplement
		entry.Extra = s.Extra
	}
	c.appendLocked(entry)
	c.phase = PhaseAwaitingResponse
	slog.Debug("Controller presented step", "step", step.ID(), "mode", step.Mode())
}

func (c *Controller) appendLocked(entry models.ExchangeEntry) {
	c.nextEntryID++
	entry.ID = c.nextEntryID
	c.log = append(c.log, entry)
}
