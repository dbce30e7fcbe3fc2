package featmy

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PendingStudentLookup is the outcome of an unauthenticated pending-student
// check. Exactly one of NoIndex, AlreadyActive, or Exists is set.
type PendingStudentLookup struct {
	// NoIndex is ambiguous: either the email was never registered or the
	// record predates indexing. Unauthenticated lookups into the profile
	// collection are deliberately not permitted, so it cannot be
	// disambiguated here.
	NoIndex       bool   `json:"no_index,omitempty"`
	AlreadyActive bool   `json:"already_active,omitempty"`
	Exists        bool   `json:"exists,omitempty"`
	StudentDocID  string `json:"student_doc_id,omitempty"`
	Name          string `json:"name,omitempty"`
	PersonalID    string `json:"personal_id,omitempty"`
}

// CreateStudentAccount registers a student under the current trainer: a
// provisional profile record with a trainer-assigned document id and status
// pending, an entry on the trainer's student list, and a pending-activation
// index entry keyed by the sanitized email. The index write is best effort
// after the record commit; if it fails the trainer can retry or reach the
// student directly.
func (m *Manager) CreateStudentAccount(ctx context.Context, name, email string) (*UserProfile, error) {
	session := m.Session()
	if session.Role != RolePersonal {
		return nil, ErrNotPersonal
	}

	if err := validation.Validate(name, validation.Required); err != nil {
		return nil, validationError("student name is required")
	}
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, validationError("a valid student email is required").
			WithTextCode(TextCodeInvalidEmail)
	}

	normalized := NormalizeEmail(email)

	existing, err := m.store.Query(ctx, CollectionUsers, Document{"email": normalized})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing student")
	}
	if len(existing) > 0 {
		return nil, ErrStudentExists.WithMetadata(map[string]any{"email": normalized})
	}

	personalID := session.Identity.ID()
	now := m.clock()

	profile := &UserProfile{
		ID:         uuid.New().String(),
		Role:       RoleStudent,
		Name:       name,
		Email:      normalized,
		Status:     UserStatusPending,
		PersonalID: personalID,
		Workouts:   []string{},
		CreatedAt:  &now,
	}

	doc, err := documentFromProfile(profile)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, CollectionUsers, profile.ID, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create provisional profile")
	}

	if err := m.store.AppendToArray(ctx, CollectionUsers, personalID, "students", profile.ID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link student to trainer").
			WithMetadata(map[string]any{"student_doc_id": profile.ID})
	}

	entry := &PendingActivation{
		StudentDocID: profile.ID,
		Name:         name,
		Email:        normalized,
		PersonalID:   personalID,
		Status:       UserStatusPending,
		CreatedAt:    &now,
	}

	m.bestEffort(ctx, "pending index write", map[string]any{
		"student_doc_id": profile.ID,
		"email_key":      SanitizeEmailKey(email),
	}, func() error {
		indexDoc, err := documentFromPending(entry)
		if err != nil {
			return err
		}
		return m.store.Set(ctx, CollectionPendingStudents, SanitizeEmailKey(email), indexDoc)
	})

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStudentCreated,
		UserID:    personalID,
		Metadata:  map[string]any{"student_doc_id": profile.ID},
	})

	return profile, nil
}

// CheckPendingStudent is the unauthenticated first-access lookup. The
// provisional record is the source of truth when the index disagrees with it.
func (m *Manager) CheckPendingStudent(ctx context.Context, email string) (*PendingStudentLookup, error) {
	key := SanitizeEmailKey(email)

	indexDoc, err := m.store.Get(ctx, CollectionPendingStudents, key)
	if err != nil {
		if IsNotFound(err) {
			return &PendingStudentLookup{NoIndex: true}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read pending index")
	}

	entry, err := pendingFromDocument(indexDoc)
	if err != nil {
		return nil, err
	}

	if entry.Status != UserStatusPending {
		return &PendingStudentLookup{AlreadyActive: true}, nil
	}

	recordDoc, err := m.store.Get(ctx, CollectionUsers, entry.StudentDocID)
	if err != nil {
		if IsNotFound(err) {
			return &PendingStudentLookup{AlreadyActive: true}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read provisional record")
	}

	profile, err := profileFromDocument(recordDoc)
	if err != nil {
		return nil, err
	}

	if profile.Status != UserStatusPending {
		return &PendingStudentLookup{AlreadyActive: true}, nil
	}

	return &PendingStudentLookup{
		Exists:       true,
		StudentDocID: entry.StudentDocID,
		Name:         profile.Name,
		PersonalID:   profile.PersonalID,
	}, nil
}

// ActivateStudentAccount completes a student's first access. Every step is
// retry safe: a retry may arrive with the identity already created from a
// prior attempt, in which case the call signs in instead, and an already
// active final record short-circuits to success without repeating writes.
// Repeating the call after full completion converges on the same success.
func (m *Manager) ActivateStudentAccount(ctx context.Context, email, password, provisionalID string) (*UserProfile, error) {
	if err := validation.Validate(password, validation.Required, validation.Length(6, 0)); err != nil {
		return nil, validationError("password must be at least 6 characters").
			WithTextCode(TextCodeWeakPassword)
	}

	normalized := NormalizeEmail(email)

	provisionalDoc, err := m.store.Get(ctx, CollectionUsers, provisionalID)
	if err != nil {
		if IsNotFound(err) {
			// A fully completed prior attempt deletes the provisional record.
			// Before failing, see if these credentials open an already active
			// account; only then is the missing record a retry, not an error.
			return m.resumeCompletedActivation(ctx, normalized, password, provisionalID)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read provisional record")
	}

	provisional, err := profileFromDocument(provisionalDoc)
	if err != nil {
		return nil, err
	}

	identity, err := m.provider.CreateAccount(ctx, normalized, password)
	if err != nil {
		if !hasTextCode(err, TextCodeEmailInUse) {
			return nil, err
		}
		// Retry case: the identity exists from a prior attempt that did not
		// complete. Sign in with the same credentials instead.
		identity, err = m.provider.SignIn(ctx, normalized, password)
		if err != nil {
			return nil, ErrActivationAuth.WithMetadata(map[string]any{"cause": err.Error()})
		}
	}

	existing, err := m.fetchProfile(ctx, identity.ID())
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if err == nil && existing.Status == UserStatusActive {
		// Idempotence short-circuit: a prior attempt already migrated the
		// record. Adopt the session and report success without new writes.
		m.setSession(identity, existing.Role)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventStudentActivated,
			UserID:    identity.ID(),
			Metadata:  map[string]any{"retried": true},
		})
		return existing, nil
	}

	now := m.clock()
	final := *provisional
	final.ID = identity.ID()
	final.AuthUID = identity.ID()
	final.Status = UserStatusActive
	final.ActivatedAt = &now

	finalDoc, err := documentFromProfile(&final)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, CollectionUsers, final.ID, finalDoc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create final profile record").
			WithMetadata(map[string]any{"auth_uid": identity.ID()})
	}

	// The remaining steps are cleanup; the account is already usable. A stray
	// provisional record is clutter, not a correctness violation, since it is
	// no longer reachable via the index.
	m.bestEffort(ctx, "provisional record delete", map[string]any{
		"student_doc_id": provisionalID,
	}, func() error {
		return m.store.Delete(ctx, CollectionUsers, provisionalID)
	})

	if final.PersonalID != "" {
		m.bestEffort(ctx, "trainer student-list remove", map[string]any{
			"personal_id":    final.PersonalID,
			"student_doc_id": provisionalID,
		}, func() error {
			return m.store.RemoveFromArray(ctx, CollectionUsers, final.PersonalID, "students", provisionalID)
		})

		m.bestEffort(ctx, "trainer student-list add", map[string]any{
			"personal_id": final.PersonalID,
			"auth_uid":    identity.ID(),
		}, func() error {
			return m.store.AppendToArray(ctx, CollectionUsers, final.PersonalID, "students", identity.ID())
		})
	}

	// The index entry is closed, not deleted, so an unauthenticated re-check
	// of this email reports the account as already active instead of the
	// ambiguous no-index answer.
	m.bestEffort(ctx, "pending index close", map[string]any{
		"email_key": SanitizeEmailKey(email),
	}, func() error {
		return m.store.Update(ctx, CollectionPendingStudents, SanitizeEmailKey(email), Document{
			"status": UserStatusActive,
		})
	})

	m.setSession(identity, RoleStudent)
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStudentActivated,
		UserID:    identity.ID(),
	})

	return &final, nil
}

// resumeCompletedActivation handles a repeated activation call after the
// provisional record is gone. If the credentials open an active account, the
// prior attempt finished and this one converges on the same outcome.
func (m *Manager) resumeCompletedActivation(ctx context.Context, email, password, provisionalID string) (*UserProfile, error) {
	missing := ErrPendingNotFound.WithMetadata(map[string]any{"student_doc_id": provisionalID})

	identity, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, missing
	}

	existing, err := m.fetchProfile(ctx, identity.ID())
	if err != nil || existing.Status != UserStatusActive {
		m.signOutQuiet(ctx)
		m.setSession(nil, RoleUnknown)
		return nil, missing
	}

	m.setSession(identity, existing.Role)
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStudentActivated,
		UserID:    identity.ID(),
		Metadata:  map[string]any{"retried": true},
	})
	return existing, nil
}

// DeleteStudent removes a student registered by the current trainer. The
// profile record delete is the primary effect; the trainer's student-list
// entry and the pending-activation index entry are cleaned up best effort so
// a later lookup of the email answers no-index instead of already-active.
func (m *Manager) DeleteStudent(ctx context.Context, studentDocID string) error {
	session := m.Session()

	profile, err := m.loadOwnedStudent(ctx, session, studentDocID)
	if err != nil {
		return err
	}

	if err := m.store.Delete(ctx, CollectionUsers, studentDocID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete student record").
			WithMetadata(map[string]any{"student_doc_id": studentDocID})
	}

	m.bestEffort(ctx, "trainer student-list remove", map[string]any{
		"personal_id":    session.Identity.ID(),
		"student_doc_id": studentDocID,
	}, func() error {
		return m.store.RemoveFromArray(ctx, CollectionUsers, session.Identity.ID(), "students", studentDocID)
	})

	m.bestEffort(ctx, "pending index delete", map[string]any{
		"email_key": SanitizeEmailKey(profile.Email),
	}, func() error {
		err := m.store.Delete(ctx, CollectionPendingStudents, SanitizeEmailKey(profile.Email))
		if IsNotFound(err) {
			return nil
		}
		return err
	})

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStudentDeleted,
		UserID:    session.Identity.ID(),
		Metadata:  map[string]any{"student_doc_id": studentDocID},
	})

	return nil
}

// SetStudentStatus flips an activated student of the current trainer between
// active and inactive. When the identity provider can disable accounts the
// flag is mirrored there best effort; the login status check is the
// enforcement point either way.
func (m *Manager) SetStudentStatus(ctx context.Context, studentDocID string, status UserStatus) error {
	if status != UserStatusActive && status != UserStatusInactive {
		return validationError("status must be active or inactive")
	}

	session := m.Session()

	profile, err := m.loadOwnedStudent(ctx, session, studentDocID)
	if err != nil {
		return err
	}
	if profile.Status == UserStatusPending {
		return validationError("a pending student has no status to change before activation")
	}

	if err := m.store.Update(ctx, CollectionUsers, studentDocID, Document{"status": status}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update student status").
			WithMetadata(map[string]any{"student_doc_id": studentDocID})
	}

	if disabler, ok := m.provider.(AccountDisabler); ok && profile.AuthUID != "" {
		m.bestEffort(ctx, "identity disable flag", map[string]any{
			"auth_uid": profile.AuthUID,
			"status":   status,
		}, func() error {
			return disabler.SetDisabled(ctx, profile.AuthUID, status == UserStatusInactive)
		})
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStudentStatus,
		UserID:    session.Identity.ID(),
		Metadata:  map[string]any{"student_doc_id": studentDocID, "status": status},
	})

	return nil
}

// loadOwnedStudent fetches a student record and verifies it belongs to the
// calling trainer.
func (m *Manager) loadOwnedStudent(ctx context.Context, session SessionSnapshot, studentDocID string) (*UserProfile, error) {
	if session.Role != RolePersonal {
		return nil, ErrNotPersonal
	}

	doc, err := m.store.Get(ctx, CollectionUsers, studentDocID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read student record")
	}

	profile, err := profileFromDocument(doc)
	if err != nil {
		return nil, err
	}
	if profile.Role != RoleStudent || profile.PersonalID != session.Identity.ID() {
		return nil, ErrStudentNotOwned.WithMetadata(map[string]any{"student_doc_id": studentDocID})
	}

	return profile, nil
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
