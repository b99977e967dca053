package quiz

import (
	"context"
	"expvar"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/trezcool/somo/core"
)

var (
	nowFunc = time.Now // mockable
	tracer  = otel.Tracer("github.com/trezcool/somo/core/quiz")

	attemptsGraded = expvar.NewInt("attempts_graded")
)

type (
	Store interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		// UpdateQuestion returns a core.NotFoundError when the question does not exist.
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		// GetQuestions returns the existing questions among ids, in no particular order.
		GetQuestions(ctx context.Context, ids []string) ([]Question, error)
		QueryQuestions(ctx context.Context, filter QueryFilter) ([]Question, error)

		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		GetAttempt(ctx context.Context, id string) (Attempt, error)
		// SaveAttempt persists a only if the stored status still is `from`, otherwise it returns a core.StateError.
		SaveAttempt(ctx context.Context, a Attempt, from AttemptStatus) (Attempt, error)
	}

	Service struct {
		store      Store
		engine     *Engine
		events     core.EventPublisher
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(
	store Store,
	engine *Engine,
	events core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	if engine == nil {
		engine = NewEngine()
	}
	return &Service{
		store:      store,
		engine:     engine,
		events:     events,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

// Questions

func (svc *Service) CreateQuestion(ctx context.Context, nq NewQuestion) (Question, error) {
	ctx, span := tracer.Start(ctx, "quiz.CreateQuestion")
	defer span.End()

	if err := nq.Validate(svc.validate, svc.translator); err != nil {
		return Question{}, err
	}
	now := nowFunc().UTC()
	q := Question{
		ID:        core.NewID(),
		Prompt:    nq.Prompt,
		Type:      nq.Type,
		Options:   nq.Options,
		Answer:    nq.Answer,
		Points:    nq.Points,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q, err := svc.store.CreateQuestion(ctx, q)
	if err != nil {
		return Question{}, errors.Wrap(err, "creating question")
	}
	return q, nil
}

// UpdateQuestion replaces the question's content. It is validated like a new question.
func (svc *Service) UpdateQuestion(ctx context.Context, id string, nq NewQuestion) (Question, error) {
	ctx, span := tracer.Start(ctx, "quiz.UpdateQuestion", trace.WithAttributes(attribute.String("question.id", id)))
	defer span.End()

	if err := nq.Validate(svc.validate, svc.translator); err != nil {
		return Question{}, err
	}
	q, err := svc.store.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, errors.Wrap(err, "getting question")
	}
	q.Prompt = nq.Prompt
	q.Type = nq.Type
	q.Options = nq.Options
	q.Answer = nq.Answer
	q.Points = nq.Points
	q.UpdatedAt = nowFunc().UTC()

	q, err = svc.store.UpdateQuestion(ctx, q)
	if err != nil {
		return Question{}, errors.Wrap(err, "updating question")
	}
	return q, nil
}

func (svc *Service) GetQuestion(ctx context.Context, id string) (Question, error) {
	q, err := svc.store.GetQuestion(ctx, core.CleanString(id))
	if err != nil {
		return Question{}, errors.Wrap(err, "getting question")
	}
	return q, nil
}

func (svc *Service) QueryQuestions(ctx context.Context, filter QueryFilter) ([]Question, error) {
	filter.Type = QuestionType(core.CleanString(string(filter.Type)))
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, core.NewValidationError(
			errors.New(questionTypeText),
			core.FieldError{Field: "questionType", Error: questionTypeText},
		)
	}
	qs, err := svc.store.QueryQuestions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return qs, nil
}

// GradeQuestion grades a single practice answer. Nothing is persisted.
func (svc *Service) GradeQuestion(ctx context.Context, id, answer string) (Score, error) {
	q, err := svc.GetQuestion(ctx, id)
	if err != nil {
		return Score{}, err
	}
	return svc.engine.Grade(q, Submission{QuestionID: q.ID, Answer: answer})
}

// Attempts

func (svc *Service) StartAttempt(ctx context.Context, lrn core.Learner, na NewAttempt) (Attempt, error) {
	ctx, span := tracer.Start(ctx, "quiz.StartAttempt")
	defer span.End()

	na.QuestionIDs = core.CleanStrings(na.QuestionIDs)
	if err := svc.validate.Struct(na); err != nil {
		return Attempt{}, core.TranslateValidationErrors(err, svc.translator)
	}
	if _, err := svc.loadQuestions(ctx, na.QuestionIDs); err != nil {
		return Attempt{}, err
	}

	a := Attempt{
		ID:          core.NewID(),
		LearnerID:   lrn.ID,
		QuestionIDs: na.QuestionIDs,
		Status:      NotStarted,
		Submissions: []Submission{},
		CreatedAt:   nowFunc().UTC(),
	}
	a, err := svc.store.CreateAttempt(ctx, a)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "creating attempt")
	}
	return a, nil
}

// GetAttempt returns the learner's attempt. Other learners' attempts are reported as not found.
func (svc *Service) GetAttempt(ctx context.Context, lrn core.Learner, id string) (Attempt, error) {
	a, err := svc.store.GetAttempt(ctx, core.CleanString(id))
	if err != nil {
		return Attempt{}, errors.Wrap(err, "getting attempt")
	}
	if a.LearnerID != lrn.ID {
		return Attempt{}, core.NewNotFoundError("attempt", id)
	}
	return a, nil
}

// AnswerQuestion saves an answer, starting the attempt on the first one.
// Losing the race to start the attempt to another first answer is retried once on top of it.
func (svc *Service) AnswerQuestion(ctx context.Context, lrn core.Learner, attemptID string, ar AnswerRequest) (Attempt, error) {
	ctx, span := tracer.Start(ctx, "quiz.AnswerQuestion", trace.WithAttributes(attribute.String("attempt.id", attemptID)))
	defer span.End()

	ar.QuestionID = core.CleanString(ar.QuestionID)
	if err := svc.validate.Struct(ar); err != nil {
		return Attempt{}, core.TranslateValidationErrors(err, svc.translator)
	}
	for retried := false; ; retried = true {
		a, err := svc.GetAttempt(ctx, lrn, attemptID)
		if err != nil {
			return Attempt{}, err
		}
		from := a.Status
		if err = a.Answer(ar.QuestionID, ar.Answer, nowFunc().UTC()); err != nil {
			return Attempt{}, err
		}
		saved, err := svc.save(ctx, a, from)
		// a concurrent first answer started the attempt: answer again on top of it, once
		if err != nil && from == NotStarted && !retried && core.IsStateError(err) {
			continue
		}
		return saved, err
	}
}

func (svc *Service) SubmitAttempt(ctx context.Context, lrn core.Learner, attemptID string) (Attempt, error) {
	ctx, span := tracer.Start(ctx, "quiz.SubmitAttempt", trace.WithAttributes(attribute.String("attempt.id", attemptID)))
	defer span.End()

	a, err := svc.GetAttempt(ctx, lrn, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	from := a.Status
	if err = a.Submit(nowFunc().UTC()); err != nil {
		return Attempt{}, err
	}
	return svc.save(ctx, a, from)
}

// GradeAttempt grades a submitted attempt. Concurrent graders race on the status: only one wins.
func (svc *Service) GradeAttempt(ctx context.Context, lrn core.Learner, attemptID string) (Attempt, error) {
	ctx, span := tracer.Start(ctx, "quiz.GradeAttempt", trace.WithAttributes(attribute.String("attempt.id", attemptID)))
	defer span.End()

	a, err := svc.GetAttempt(ctx, lrn, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != Submitted {
		return Attempt{}, core.NewStateError("cannot grade a " + string(a.Status) + " attempt")
	}
	questions, err := svc.loadQuestions(ctx, a.QuestionIDs)
	if err != nil {
		return Attempt{}, err
	}
	if err = a.Grade(questions, svc.engine, nowFunc().UTC()); err != nil {
		return Attempt{}, err
	}
	a, err = svc.save(ctx, a, Submitted)
	if err != nil {
		return Attempt{}, err
	}

	attemptsGraded.Add(1)
	svc.publish(ctx, core.NewEvent(core.EventAttemptGraded, lrn, map[string]interface{}{
		"attempt_id":   a.ID,
		"total_points": a.TotalPoints,
		"max_points":   a.MaxPoints,
	}))
	return a, nil
}

func (svc *Service) save(ctx context.Context, a Attempt, from AttemptStatus) (Attempt, error) {
	a, err := svc.store.SaveAttempt(ctx, a, from)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "saving attempt")
	}
	return a, nil
}

// loadQuestions returns the questions keyed by ID. Any missing question is a core.NotFoundError.
func (svc *Service) loadQuestions(ctx context.Context, ids []string) (map[string]Question, error) {
	qs, err := svc.store.GetQuestions(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting questions")
	}
	questions := make(map[string]Question, len(qs))
	for _, q := range qs {
		questions[q.ID] = q
	}
	for _, id := range ids {
		if _, ok := questions[id]; !ok {
			return nil, core.NewNotFoundError("question", id)
		}
	}
	return questions, nil
}

func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing "+evt.Type, errors.Wrap(err, "publishing event"), core.Learner{ID: evt.LearnerID})
	}
}
