package featmy

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// SignupPersonalInput carries the trainer self-registration fields.
type SignupPersonalInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

func (in SignupPersonalInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 0)),
	)
}

// SignupPersonal creates a trainer account: a new identity plus a profile
// record keyed by that identity's id, role personal, status active, empty
// student list. There is no distributed transaction; a profile-write failure
// after identity creation is surfaced and leaves the identity dangling at
// worst.
func (m *Manager) SignupPersonal(ctx context.Context, in SignupPersonalInput) (*UserProfile, error) {
	if err := in.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup data").
			WithCode(goerrors.CodeBadRequest)
	}

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)

	identity, err := m.provider.CreateAccount(ctx, email, in.Password)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	profile := &UserProfile{
		ID:        identity.ID(),
		AuthUID:   identity.ID(),
		Role:      RolePersonal,
		Name:      in.Name,
		Email:     email,
		Phone:     phone,
		Status:    UserStatusActive,
		Students:  []string{},
		CreatedAt: &now,
	}

	doc, err := documentFromProfile(profile)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, CollectionUsers, profile.ID, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create trainer profile").
			WithMetadata(map[string]any{"auth_uid": identity.ID()})
	}

	m.setSession(identity, RolePersonal)
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignupPersonal,
		UserID:    identity.ID(),
	})

	return profile, nil
}
