package quiz

import (
	"fmt"
	"time"

	"github.com/trezcool/somo/core"
)

type AttemptStatus string

// Attempt statuses
const (
	NotStarted AttemptStatus = "NOT_STARTED"
	InProgress AttemptStatus = "IN_PROGRESS"
	Submitted  AttemptStatus = "SUBMITTED"
	Graded     AttemptStatus = "GRADED"
)

type (
	Submission struct {
		ID          string    `json:"id"`
		AttemptID   string    `json:"attempt_id"`
		LearnerID   string    `json:"learner_id"`
		QuestionID  string    `json:"question_id"`
		Answer      string    `json:"answer"`
		SubmittedAt time.Time `json:"submitted_at"`
	}

	// Attempt is a learner's answers to a fixed set of questions, from the first answer to grading.
	Attempt struct {
		ID          string        `json:"id"`
		LearnerID   string        `json:"learner_id"`
		QuestionIDs []string      `json:"question_ids"`
		Status      AttemptStatus `json:"status"`
		Submissions []Submission  `json:"submissions"`
		Scores      []Score       `json:"scores,omitempty"`
		TotalPoints int           `json:"total_points"`
		MaxPoints   int           `json:"max_points"`
		CreatedAt   time.Time     `json:"created_at"`
		SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
		GradedAt    *time.Time    `json:"graded_at,omitempty"`
	}

	NewAttempt struct {
		QuestionIDs []string `json:"question_ids" validate:"required,min=1,unique,dive,notblank"`
	}

	AnswerRequest struct {
		QuestionID string `json:"question_id" validate:"notblank"`
		Answer     string `json:"answer" validate:"notblank"`
	}
)

func (a Attempt) HasQuestion(questionID string) bool {
	for _, id := range a.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

func (a Attempt) submission(questionID string) (int, bool) {
	for i, sub := range a.Submissions {
		if sub.QuestionID == questionID {
			return i, true
		}
	}
	return -1, false
}

// Unanswered returns the questions without a submission, in attempt order.
func (a Attempt) Unanswered() []string {
	var ids []string
	for _, id := range a.QuestionIDs {
		if _, ok := a.submission(id); !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Answer records the learner's answer to one of the attempt's questions.
// The first answer starts the attempt. Answering again before submitting replaces the previous answer.
func (a *Attempt) Answer(questionID, answer string, at time.Time) error {
	if !a.HasQuestion(questionID) {
		return core.NewNotFoundError("question", questionID)
	}
	switch a.Status {
	case NotStarted:
		a.Status = InProgress
	case InProgress:
	default:
		return core.NewStateError(fmt.Sprintf("cannot answer a %s attempt", a.Status))
	}

	sub := Submission{
		ID:          core.NewID(),
		AttemptID:   a.ID,
		LearnerID:   a.LearnerID,
		QuestionID:  questionID,
		Answer:      answer,
		SubmittedAt: at,
	}
	if i, ok := a.submission(questionID); ok {
		sub.ID = a.Submissions[i].ID
		a.Submissions[i] = sub
	} else {
		a.Submissions = append(a.Submissions, sub)
	}
	return nil
}

// Submit closes the attempt to new answers. Every question must be answered.
func (a *Attempt) Submit(at time.Time) error {
	if a.Status != InProgress {
		return core.NewStateError(fmt.Sprintf("cannot submit a %s attempt", a.Status))
	}
	if left := a.Unanswered(); len(left) > 0 {
		return core.NewStateError(fmt.Sprintf("%d question(s) left unanswered", len(left)))
	}
	a.Status = Submitted
	a.SubmittedAt = &at
	return nil
}

// Grade scores every submission. questions must hold all the attempt's questions, keyed by ID.
// A graded attempt is final.
func (a *Attempt) Grade(questions map[string]Question, engine *Engine, at time.Time) error {
	if a.Status != Submitted {
		return core.NewStateError(fmt.Sprintf("cannot grade a %s attempt", a.Status))
	}

	scores := make([]Score, 0, len(a.QuestionIDs))
	var total, maxPoints int
	for _, qid := range a.QuestionIDs {
		q, ok := questions[qid]
		if !ok {
			return core.NewNotFoundError("question", qid)
		}
		i, ok := a.submission(qid)
		if !ok {
			return core.NewStateError(fmt.Sprintf("question %s has no submission", qid))
		}
		score, err := engine.Grade(q, a.Submissions[i])
		if err != nil {
			return err
		}
		scores = append(scores, score)
		total += score.Points
		maxPoints += q.Points
	}

	a.Scores = scores
	a.TotalPoints = total
	a.MaxPoints = maxPoints
	a.Status = Graded
	a.GradedAt = &at
	return nil
}
