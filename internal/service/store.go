package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ivanoskov/ibadah_bot/internal/model"
	"github.com/ivanoskov/ibadah_bot/internal/repository"
)

const defaultNoticeTTL = 3 * time.Second

var (
	// ErrClosed is returned by operations started after Close.
	ErrClosed = errors.New("ibadah store is closed")
	// ErrEditTargetMismatch is returned by Update for an id that is not being edited.
	ErrEditTargetMismatch = errors.New("record is not the current edit target")
)

// Status is the load state of the collection.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	}
	return "idle"
}

// SubmitState is the state of the create/edit form.
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitSubmitting
	SubmitValidationBlocked
)

// NoticeKind tells success notices from error notices.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice is a one-shot message for the user, replaced by the next one.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
}

// Snapshot is a copy of the store state, safe to keep and render.
type Snapshot struct {
	Records    []model.Ibadah
	Status     Status
	Loading    bool
	Refreshing bool
	// Error is the message of the last failed load. Records stay visible.
	Error string

	Editing bool
	EditID  int64
	Draft   model.Draft

	Submit            SubmitState
	ValidationMessage string
	Notice            *Notice
}

// Option configures an IbadahStore.
type Option func(*IbadahStore)

// WithClock sets the clock used for the default draft date.
func WithClock(now func() time.Time) Option {
	return func(s *IbadahStore) { s.now = now }
}

// WithNoticeTTL sets how long an inline validation message stays up.
func WithNoticeTTL(d time.Duration) Option {
	return func(s *IbadahStore) {
		if d > 0 {
			s.noticeTTL = d
		}
	}
}

// WithOnChange registers fn to receive a snapshot after every state change.
// fn may be called from several goroutines.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *IbadahStore) { s.onChange = fn }
}

// IbadahStore mirrors the remote ibadah collection for one screen. Records
// change only as a result of a successful remote call: creates and updates
// re-fetch the whole list, deletes drop the record locally.
type IbadahStore struct {
	repo      repository.Repository
	now       func() time.Time
	noticeTTL time.Duration
	onChange  func(Snapshot)

	// life ends on Close and cancels every request still in flight
	life context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	closed     bool
	records    []model.Ibadah
	status     Status
	pending    int
	refreshes  int
	submitting int
	errMsg     string
	editing    bool
	editID     int64
	draft      model.Draft
	notice     *Notice

	validationMsg string
	validationGen uint64
	validationT   *time.Timer

	listSeq    uint64
	appliedSeq uint64
}

// NewIbadahStore creates an idle store over repo with an empty draft dated
// today. Nothing is fetched until List is called.
func NewIbadahStore(repo repository.Repository, opts ...Option) *IbadahStore {
	s := &IbadahStore{
		repo:      repo,
		now:       time.Now,
		noticeTTL: defaultNoticeTTL,
		records:   []model.Ibadah{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.life, s.stop = context.WithCancel(context.Background())
	s.draft = model.NewDraft(s.today())
	return s
}

// List fetches the whole collection and replaces the local copy with it.
// On failure the previous records are kept and Error is set.
func (s *IbadahStore) List(ctx context.Context) error {
	return s.list(ctx, false)
}

// Refresh is List triggered by the user, tracked by the Refreshing flag.
func (s *IbadahStore) Refresh(ctx context.Context) error {
	return s.list(ctx, true)
}

func (s *IbadahStore) list(ctx context.Context, refresh bool) error {
	var seq uint64
	raise := func() {
		s.listSeq++
		seq = s.listSeq
		s.status = StatusLoading
		if refresh {
			s.refreshes++
		}
	}
	lower := func() {
		if refresh {
			s.refreshes--
		}
	}

	return s.track(ctx, raise, lower, func(ctx context.Context) error {
		records, err := s.repo.ListIbadah(ctx)
		s.mutate(func() {
			// an older request finishing late must not overwrite a newer answer
			if seq < s.appliedSeq {
				log.Debug().Uint64("seq", seq).Uint64("applied", s.appliedSeq).Msg("[ibadah] stale list response dropped")
				return
			}
			s.appliedSeq = seq
			latest := seq == s.listSeq
			if err != nil {
				s.errMsg = msgLoadFailed
				if latest {
					s.status = StatusFailed
				}
				return
			}
			s.records = records
			s.errMsg = ""
			if latest {
				s.status = StatusLoaded
			}
		})
		if err != nil {
			log.Warn().Err(err).Uint64("seq", seq).Msg("[ibadah] list failed")
			return err
		}
		log.Debug().Uint64("seq", seq).Int("count", len(records)).Msg("[ibadah] list loaded")
		return nil
	})
}

// Create validates draft and sends it. Nothing is inserted locally: on
// success the collection is fetched again so server-assigned fields show up.
func (s *IbadahStore) Create(ctx context.Context, draft model.Draft) error {
	draft = draft.Trimmed()
	if err := s.check(draft); err != nil {
		return err
	}

	err := s.track(ctx, s.raiseSubmit, s.lowerSubmit, func(ctx context.Context) error {
		return s.repo.CreateIbadah(ctx, draft)
	})
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			s.mutate(func() { s.notice = writeFailureNotice(err, msgCreateFailed) })
			log.Warn().Err(err).Str("name", draft.Name).Msg("[ibadah] create failed")
		}
		return err
	}

	s.mutate(func() {
		s.draft = model.NewDraft(s.today())
		s.notice = &Notice{Kind: NoticeSuccess, Title: titleSuccess, Message: msgCreated}
	})
	log.Info().Str("name", draft.Name).Str("category", string(draft.Category)).Msg("[ibadah] created")

	// a failed re-fetch is already reflected in the load state
	_ = s.List(ctx)
	return nil
}

// Update sends draft for the record being edited. Without an edit target it
// does nothing; a different id is rejected before any network call.
func (s *IbadahStore) Update(ctx context.Context, id int64, draft model.Draft) error {
	s.mu.Lock()
	closed, editing, target := s.closed, s.editing, s.editID
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !editing {
		return nil
	}
	if target != id {
		return ErrEditTargetMismatch
	}

	draft = draft.Trimmed()
	if err := s.check(draft); err != nil {
		return err
	}

	err := s.track(ctx, s.raiseSubmit, s.lowerSubmit, func(ctx context.Context) error {
		return s.repo.UpdateIbadah(ctx, id, draft)
	})
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			s.mutate(func() { s.notice = writeFailureNotice(err, msgUpdateFailed) })
			log.Warn().Err(err).Int64("id", id).Msg("[ibadah] update failed")
		}
		return err
	}

	s.mutate(func() {
		if s.editing && s.editID == id {
			s.editing = false
			s.editID = 0
			s.draft = model.NewDraft(s.today())
		}
		s.notice = &Notice{Kind: NoticeSuccess, Title: titleSuccess, Message: msgUpdated}
	})
	log.Info().Int64("id", id).Msg("[ibadah] updated")

	_ = s.List(ctx)
	return nil
}

// Delete removes the record remotely, then locally without a re-fetch.
func (s *IbadahStore) Delete(ctx context.Context, id int64) error {
	err := s.track(ctx, nil, nil, func(ctx context.Context) error {
		return s.repo.DeleteIbadah(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			s.mutate(func() { s.notice = deleteFailureNotice(err) })
			log.Warn().Err(err).Int64("id", id).Msg("[ibadah] delete failed")
		}
		return err
	}

	s.mutate(func() {
		kept := make([]model.Ibadah, 0, len(s.records))
		for _, r := range s.records {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		s.records = kept
		s.notice = &Notice{Kind: NoticeSuccess, Title: titleSuccess, Message: msgDeleted}
	})
	log.Info().Int64("id", id).Msg("[ibadah] deleted")
	return nil
}

// Submit sends the held draft: an update in edit mode, a create otherwise.
func (s *IbadahStore) Submit(ctx context.Context) error {
	s.mu.Lock()
	draft, editing, id := s.draft, s.editing, s.editID
	s.mu.Unlock()

	if editing {
		return s.Update(ctx, id, draft)
	}
	return s.Create(ctx, draft)
}

// EnterEdit loads r into the draft and makes it the only edit target.
func (s *IbadahStore) EnterEdit(r model.Ibadah) {
	s.mutate(func() {
		s.editing = true
		s.editID = r.ID
		s.draft = model.DraftOf(r)
	})
}

// CancelEdit leaves edit mode and resets the draft.
func (s *IbadahStore) CancelEdit() {
	s.mutate(func() {
		s.editing = false
		s.editID = 0
		s.draft = model.NewDraft(s.today())
	})
}

// SetDraft replaces the form contents. Edit mode is unchanged.
func (s *IbadahStore) SetDraft(d model.Draft) {
	s.mutate(func() { s.draft = d })
}

// Draft returns the form contents.
func (s *IbadahStore) Draft() model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Record returns the local copy of the record with the given id.
func (s *IbadahStore) Record(id int64) (model.Ibadah, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return model.Ibadah{}, false
}

// Records returns a copy of the local collection in server order.
func (s *IbadahStore) Records() []model.Ibadah {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Ibadah(nil), s.records...)
}

// DismissNotice clears the notice once it has been shown.
func (s *IbadahStore) DismissNotice() {
	s.mutate(func() { s.notice = nil })
}

// Snapshot returns a copy of the whole store state.
func (s *IbadahStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Today is the store clock's calendar date.
func (s *IbadahStore) Today() model.Date {
	return s.today()
}

// Close detaches the store from its consumer. In-flight requests are
// cancelled and their responses, if any, are ignored.
func (s *IbadahStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.validationT != nil {
		s.validationT.Stop()
		s.validationT = nil
	}
	s.mu.Unlock()
	s.stop()
}

func (s *IbadahStore) today() model.Date {
	return model.DateOf(s.now())
}

// check validates draft and, on failure, shows the message inline until
// the notice TTL passes.
func (s *IbadahStore) check(draft model.Draft) error {
	err := draft.Validate()
	if err == nil {
		return nil
	}
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	s.mutate(func() {
		s.validationMsg = verr.Message
		s.notice = &Notice{Kind: NoticeError, Title: titleValidation, Message: verr.Message}
		s.validationGen++
		gen := s.validationGen
		if s.validationT != nil {
			s.validationT.Stop()
		}
		s.validationT = time.AfterFunc(s.noticeTTL, func() {
			s.mutate(func() {
				if s.validationGen == gen {
					s.validationMsg = ""
					s.validationT = nil
				}
			})
		})
	})
	log.Debug().Str("field", verr.Field).Msg("[ibadah] draft rejected")
	return err
}

// raiseSubmit marks a create or update in flight and drops the inline
// validation message.
func (s *IbadahStore) raiseSubmit() {
	s.submitting++
	s.validationMsg = ""
}

func (s *IbadahStore) lowerSubmit() {
	s.submitting--
}

// track runs one remote call with the loading flag raised. raise and lower
// run under the lock; lower runs even if the store was closed meanwhile.
// The call's context ends with ctx or with the store, whichever is first.
func (s *IbadahStore) track(ctx context.Context, raise, lower func(), call func(context.Context) error) error {
	ok := s.mutate(func() {
		s.pending++
		if raise != nil {
			raise()
		}
	})
	if !ok {
		return ErrClosed
	}
	defer s.settle(func() {
		s.pending--
		if lower != nil {
			lower()
		}
	})

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.life, cancel)
	defer stop()

	return call(reqCtx)
}

// mutate applies fn unless the store is closed and reports whether it did.
func (s *IbadahStore) mutate(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(snap)
	}
	return true
}

// settle always applies fn; only open stores publish the change.
func (s *IbadahStore) settle(fn func()) {
	s.mu.Lock()
	fn()
	closed := s.closed
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if !closed && s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *IbadahStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		Records:           append([]model.Ibadah(nil), s.records...),
		Status:            s.status,
		Loading:           s.pending > 0,
		Refreshing:        s.refreshes > 0,
		Error:             s.errMsg,
		Editing:           s.editing,
		EditID:            s.editID,
		Draft:             s.draft,
		ValidationMessage: s.validationMsg,
	}
	switch {
	case s.submitting > 0:
		snap.Submit = SubmitSubmitting
	case s.validationMsg != "":
		snap.Submit = SubmitValidationBlocked
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	return snap
}
