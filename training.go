package featmy

import (
	"context"
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Exercise is a reusable movement owned by a trainer.
type Exercise struct {
	ID         string     `json:"id,omitempty"`
	PersonalID string     `json:"personal_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	VideoURL   string     `json:"video_url,omitempty"`
	EmbedURL   string     `json:"embed_url,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// WorkoutDay is one day of a workout plan.
type WorkoutDay struct {
	Title     string   `json:"title,omitempty"`
	Exercises []string `json:"exercises,omitempty"`
}

// WorkoutPlan groups workout days assigned to a student.
type WorkoutPlan struct {
	ID         string       `json:"id,omitempty"`
	PersonalID string       `json:"personal_id,omitempty"`
	StudentID  string       `json:"student_id,omitempty"`
	Title      string       `json:"title,omitempty"`
	Days       []WorkoutDay `json:"days,omitempty"`
	CreatedAt  *time.Time   `json:"created_at,omitempty"`
}

// DayFeedback is a student's report on a completed workout day.
type DayFeedback struct {
	ID        string     `json:"id,omitempty"`
	StudentID string     `json:"student_id,omitempty"`
	WorkoutID string     `json:"workout_id,omitempty"`
	DayIndex  int        `json:"day_index"`
	Rating    int        `json:"rating,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// TrainingService is the straight-line data-access glue around exercises,
// workout plans, and feedback. It has no state machine of its own; every
// method is a direct call against the document store.
type TrainingService struct {
	store  DocumentStore
	logger Logger
	clock  func() time.Time
}

func NewTrainingService(store DocumentStore) *TrainingService {
	return &TrainingService{
		store:  store,
		logger: defLogger{},
		clock:  time.Now,
	}
}

func (s *TrainingService) WithLogger(logger Logger) *TrainingService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *TrainingService) WithClock(clock func() time.Time) *TrainingService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// CreateExercise stores a new exercise for a trainer, normalizing the video
// URL to its embeddable form when recognized.
func (s *TrainingService) CreateExercise(ctx context.Context, personalID string, exercise Exercise) (*Exercise, error) {
	if err := validation.Validate(exercise.Name, validation.Required); err != nil {
		return nil, validationError("exercise name is required")
	}

	now := s.clock()
	exercise.ID = uuid.New().String()
	exercise.PersonalID = personalID
	exercise.CreatedAt = &now

	if exercise.VideoURL != "" {
		if embed, ok := VideoEmbedURL(exercise.VideoURL); ok {
			exercise.EmbedURL = embed
		} else {
			s.logger.Debug("unrecognized video url %q, skipping embed", exercise.VideoURL)
		}
	}

	doc, err := encodeDocument(&exercise)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, CollectionExercises, exercise.ID, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create exercise")
	}

	return &exercise, nil
}

// ExercisesByPersonal lists a trainer's exercises.
func (s *TrainingService) ExercisesByPersonal(ctx context.Context, personalID string) ([]Exercise, error) {
	docs, err := s.store.Query(ctx, CollectionExercises, Document{"personal_id": personalID})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query exercises")
	}

	exercises := make([]Exercise, 0, len(docs))
	for _, doc := range docs {
		var exercise Exercise
		if err := decodeDocument(doc, &exercise); err != nil {
			return nil, err
		}
		exercises = append(exercises, exercise)
	}

	return exercises, nil
}

// CreateWorkoutPlan stores a plan and links it to the student's assigned
// workouts list.
func (s *TrainingService) CreateWorkoutPlan(ctx context.Context, plan WorkoutPlan) (*WorkoutPlan, error) {
	err := validation.Errors{
		"title":      validation.Validate(plan.Title, validation.Required),
		"student_id": validation.Validate(plan.StudentID, validation.Required),
	}.Filter()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid workout plan").
			WithCode(goerrors.CodeBadRequest)
	}

	now := s.clock()
	plan.ID = uuid.New().String()
	plan.CreatedAt = &now

	doc, err := encodeDocument(&plan)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, CollectionWorkouts, plan.ID, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create workout plan")
	}

	if err := s.store.AppendToArray(ctx, CollectionUsers, plan.StudentID, "workouts", plan.ID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign workout to student").
			WithMetadata(map[string]any{"workout_id": plan.ID, "student_id": plan.StudentID})
	}

	return &plan, nil
}

// WorkoutsByStudent lists the plans assigned to a student.
func (s *TrainingService) WorkoutsByStudent(ctx context.Context, studentID string) ([]WorkoutPlan, error) {
	docs, err := s.store.Query(ctx, CollectionWorkouts, Document{"student_id": studentID})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query workouts")
	}

	plans := make([]WorkoutPlan, 0, len(docs))
	for _, doc := range docs {
		var plan WorkoutPlan
		if err := decodeDocument(doc, &plan); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, nil
}

// SubmitDayFeedback records a student's feedback for one workout day.
func (s *TrainingService) SubmitDayFeedback(ctx context.Context, feedback DayFeedback) (*DayFeedback, error) {
	err := validation.Errors{
		"student_id": validation.Validate(feedback.StudentID, validation.Required),
		"workout_id": validation.Validate(feedback.WorkoutID, validation.Required),
		"day_index":  validation.Validate(feedback.DayIndex, validation.Min(0)),
	}.Filter()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid feedback").
			WithCode(goerrors.CodeBadRequest)
	}

	now := s.clock()
	feedback.ID = uuid.New().String()
	feedback.CreatedAt = &now

	doc, err := encodeDocument(&feedback)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, CollectionFeedbacks, feedback.ID, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store feedback")
	}

	return &feedback, nil
}

func encodeDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode document")
	}
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode document")
	}
	return doc, nil
}

func decodeDocument(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode document")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode document")
	}
	return nil
}
