package featmy

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// Role is the user's role, derived from the profile record.
type Role = string

const (
	// RolePersonal is a trainer account
	RolePersonal Role = "personal"
	// RoleStudent is a student account managed by a trainer
	RoleStudent Role = "student"
	// RoleUnknown marks the window between identity creation and profile
	// record creation; it is never persisted
	RoleUnknown Role = ""
)

// UserStatus is the profile record lifecycle status
type UserStatus = string

const (
	// UserStatusPending marks a provisional record with no backing identity
	UserStatusPending UserStatus = "pending"
	// UserStatusActive marks an activated account
	UserStatusActive UserStatus = "active"
	// UserStatusInactive marks a student disabled by their trainer
	UserStatusInactive UserStatus = "inactive"
)

// Collection names in the document store.
const (
	CollectionUsers           = "users"
	CollectionPendingStudents = "pendingStudents"
	CollectionAuthAccounts    = "authAccounts"
	CollectionExercises       = "exercises"
	CollectionWorkouts        = "workouts"
	CollectionFeedbacks       = "feedbacks"
)

// ParseRole safely parses a string into a Role
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	switch role {
	case RolePersonal, RoleStudent:
		return role, true
	default:
		return RoleUnknown, false
	}
}

// UserProfile is the profile record describing a user. Provisional student
// records are keyed by a trainer-assigned document id; on activation the
// record migrates to a document keyed by the identity's own id.
type UserProfile struct {
	ID          string     `json:"id,omitempty"`
	AuthUID     string     `json:"auth_uid,omitempty"`
	Role        Role       `json:"role,omitempty"`
	Name        string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Status      UserStatus `json:"status,omitempty"`
	PersonalID  string     `json:"personal_id,omitempty"`
	Students    []string   `json:"students,omitempty"`
	Workouts    []string   `json:"workouts,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// EnsureStatus defaults empty statuses to active
func (u *UserProfile) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// IsActive checks the record status
func (u *UserProfile) IsActive() bool {
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

// PendingActivation is the public index entry bridging an unauthenticated
// email lookup to a provisional profile record.
type PendingActivation struct {
	StudentDocID string     `json:"student_doc_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	PersonalID   string     `json:"personal_id,omitempty"`
	Status       UserStatus `json:"status,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// SanitizeEmailKey normalizes an email address into the pending-activation
// index key: lowercase, trimmed, every non-alphanumeric rune replaced.
func SanitizeEmailKey(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// NormalizeEmail lowercases and trims an email for equality comparisons
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone validates and formats a phone number to E.164. Numbers
// without a country prefix are parsed against the BR region.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	parsed, err := phonenumbers.Parse(trimmed, "BR")
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithCode(goerrors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", validationError("invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// profileFromDocument decodes a stored document into a UserProfile.
func profileFromDocument(doc Document) (*UserProfile, error) {
	profile := &UserProfile{}
	if err := decodeDocument(doc, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// documentFromProfile encodes a UserProfile into a storable document.
func documentFromProfile(profile *UserProfile) (Document, error) {
	return encodeDocument(profile)
}

// pendingFromDocument decodes a stored index entry.
func pendingFromDocument(doc Document) (*PendingActivation, error) {
	entry := &PendingActivation{}
	if err := decodeDocument(doc, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// documentFromPending encodes an index entry into a storable document.
func documentFromPending(entry *PendingActivation) (Document, error) {
	return encodeDocument(entry)
}
