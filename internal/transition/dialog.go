package transition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"caseflow/internal/stage"
)

// State is the dialog's current phase. Exactly one of the concrete types below.
type State interface {
	Name() string
}

type (
	Idle       struct{}
	Validating struct{ Evaluation Evaluation }
	Submitting struct{ Payload Payload }
	Applied    struct{ Outcome Outcome }
	// PendingApproval means a request was queued for an admin; the stage is unchanged.
	PendingApproval struct{ Outcome Outcome }
	// Failed keeps the evaluation the failed submission was built from; the form is untouched.
	Failed struct {
		Err        error
		Evaluation Evaluation
	}
	Closed struct{}
)

func (Idle) Name() string            { return "idle" }
func (Validating) Name() string      { return "validating" }
func (Submitting) Name() string      { return "submitting" }
func (Applied) Name() string         { return "applied" }
func (PendingApproval) Name() string { return "pending_approval" }
func (Failed) Name() string          { return "failed" }
func (Closed) Name() string          { return "closed" }

// Submitter sends one stage change to the backend.
type Submitter interface {
	SubmitTransition(ctx context.Context, caseID string, p Payload) (Outcome, error)
}

// Dialog is the stage change workflow for one case. Each instance owns its form;
// nothing is shared between dialogs.
type Dialog struct {
	caseID         string
	catalog        stage.Catalog
	currentStageID string
	now            func() time.Time

	mu      sync.Mutex
	form    Form
	state   State
	lastErr error
}

// NewDialog starts Idle with "effective now" selected. now is the reference clock
// used for backdating; nil means time.Now.
func NewDialog(caseID string, cat stage.Catalog, currentStageID string, now func() time.Time) *Dialog {
	if now == nil {
		now = time.Now
	}
	return &Dialog{
		caseID:         caseID,
		catalog:        cat,
		currentStageID: currentStageID,
		now:            now,
		form:           Form{EffectiveNow: true},
		state:          Idle{},
	}
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dialog) Form() Form {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.form
}

// Targets lists the stages the user may pick.
func (d *Dialog) Targets() []stage.Stage {
	return d.catalog.Selectable()
}

// CurrentStage is false when the case's stage is no longer in the catalog.
func (d *Dialog) CurrentStage() (stage.Stage, bool) {
	return d.catalog.Lookup(d.currentStageID)
}

// Evaluation recomputes classification, policy and validation for the current form.
func (d *Dialog) Evaluation() Evaluation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.evaluateLocked()
}

// LastError is the most recent submission error until dismissed or a later submit succeeds.
func (d *Dialog) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Dialog) DismissError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = nil
}

func (d *Dialog) SelectTarget(stageID string) (Evaluation, error) {
	return d.edit(func(f *Form) { f.TargetStageID = stageID })
}

func (d *Dialog) SetEffectiveNow(now bool) (Evaluation, error) {
	return d.edit(func(f *Form) { f.EffectiveNow = now })
}

// SetDate picks an effective date; nil clears it.
func (d *Dialog) SetDate(date *Date) (Evaluation, error) {
	return d.edit(func(f *Form) {
		if date == nil {
			f.Date = nil
			return
		}
		v := *date
		f.Date = &v
	})
}

// SetClock picks a time of day; nil means the date alone.
func (d *Dialog) SetClock(c *Clock) (Evaluation, error) {
	return d.edit(func(f *Form) {
		if c == nil {
			f.Clock = nil
			return
		}
		v := *c
		f.Clock = &v
	})
}

func (d *Dialog) SetReason(reason string) (Evaluation, error) {
	return d.edit(func(f *Form) { f.Reason = reason })
}

func (d *Dialog) edit(apply func(f *Form)) (Evaluation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editableLocked(); err != nil {
		return Evaluation{}, err
	}
	apply(&d.form)
	ev := d.evaluateLocked()
	d.state = Validating{Evaluation: ev}
	return ev, nil
}

func (d *Dialog) editableLocked() error {
	switch d.state.(type) {
	case Submitting:
		return ErrSubmitInFlight
	case Applied, PendingApproval, Closed:
		return ErrDialogClosed
	}
	return nil
}

func (d *Dialog) evaluateLocked() Evaluation {
	return Evaluate(d.catalog, d.currentStageID, d.form, d.now())
}

// Submit validates, then calls s exactly once with a freshly built payload. Validation
// failures return ValidationErrors without calling s. A failed call returns
// *SubmissionError and leaves the dialog open with its input intact.
func (d *Dialog) Submit(ctx context.Context, s Submitter) (Outcome, error) {
	d.mu.Lock()
	if err := d.editableLocked(); err != nil {
		d.mu.Unlock()
		return Outcome{}, err
	}
	ev := d.evaluateLocked()
	if !ev.CanSubmit() {
		d.state = Validating{Evaluation: ev}
		d.mu.Unlock()
		return Outcome{}, ev.Problems
	}
	p := Build(d.form)
	d.state = Submitting{Payload: p}
	d.mu.Unlock()

	out, err := s.SubmitTransition(ctx, d.caseID, p)
	if err == nil {
		err = checkOutcome(out)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		serr := &SubmissionError{Err: err}
		d.state = Failed{Err: serr, Evaluation: ev}
		d.lastErr = serr
		return Outcome{}, serr
	}

	d.lastErr = nil
	if out.Status == StatusPendingApproval {
		d.state = PendingApproval{Outcome: out}
	} else {
		d.state = Applied{Outcome: out}
	}
	return out, nil
}

func checkOutcome(out Outcome) error {
	switch out.Status {
	case StatusApplied:
		return nil
	case StatusPendingApproval:
		if out.RequestID == "" {
			return fmt.Errorf("pending approval outcome without request id")
		}
		return nil
	default:
		return fmt.Errorf("unexpected outcome status %q", out.Status)
	}
}

// Cancel discards the dialog. It is refused while a submission is in flight.
func (d *Dialog) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.state.(Submitting); busy {
		return ErrSubmitInFlight
	}
	d.form = Form{}
	d.lastErr = nil
	d.state = Closed{}
	return nil
}
