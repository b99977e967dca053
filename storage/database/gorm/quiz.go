package gormrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/quiz"
)

var questionOrderings = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"question":     "prompt",
	"questionType": "question_type",
}

type (
	questionModel struct {
		ID           string `gorm:"primaryKey"`
		Prompt       string
		QuestionType string
		Options      *string // JSON array
		Answer       string
		Points       int
		CreatedAt    time.Time `gorm:"autoCreateTime:false"`
		UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
	}

	attemptModel struct {
		ID          string `gorm:"primaryKey"`
		LearnerID   string
		Status      string
		QuestionIDs string `gorm:"column:question_ids"` // JSON array
		TotalPoints *int
		MaxPoints   *int
		CreatedAt   time.Time `gorm:"autoCreateTime:false"`
		SubmittedAt *time.Time
		GradedAt    *time.Time
	}

	submissionModel struct {
		ID          string `gorm:"primaryKey"`
		AttemptID   string
		QuestionID  string
		LearnerID   string
		Answer      string
		SubmittedAt time.Time
		Correct     *bool
		Points      *int
	}
)

func (questionModel) TableName() string   { return "questions" }
func (attemptModel) TableName() string    { return "attempts" }
func (submissionModel) TableName() string { return "attempt_submissions" }

func newQuestionModel(q quiz.Question) (questionModel, error) {
	m := questionModel{
		ID:           q.ID,
		Prompt:       q.Prompt,
		QuestionType: string(q.Type),
		Answer:       q.Answer,
		Points:       q.Points,
		CreatedAt:    q.CreatedAt.UTC(),
		UpdatedAt:    q.UpdatedAt.UTC(),
	}
	if q.Options != nil {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return questionModel{}, errors.Wrap(err, "encoding options")
		}
		s := string(opts)
		m.Options = &s
	}
	return m, nil
}

func (m questionModel) toQuestion() (quiz.Question, error) {
	q := quiz.Question{
		ID:        m.ID,
		Prompt:    m.Prompt,
		Type:      quiz.QuestionType(m.QuestionType),
		Answer:    m.Answer,
		Points:    m.Points,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.Options != nil {
		if err := json.Unmarshal([]byte(*m.Options), &q.Options); err != nil {
			return quiz.Question{}, errors.Wrap(err, "decoding options")
		}
	}
	return q, nil
}

func toQuestions(models []questionModel) ([]quiz.Question, error) {
	qs := make([]quiz.Question, 0, len(models))
	for _, m := range models {
		q, err := m.toQuestion()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type quizStore struct {
	db *gorm.DB
}

var _ quiz.Store = (*quizStore)(nil)

func NewQuizStore(db *gorm.DB) quiz.Store {
	return &quizStore{db: db}
}

func (s *quizStore) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	m, err := newQuestionModel(q)
	if err != nil {
		return quiz.Question{}, err
	}
	if err = s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return quiz.Question{}, core.StoreError(err, "inserting question")
	}
	return m.toQuestion()
}

func (s *quizStore) UpdateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	m, err := newQuestionModel(q)
	if err != nil {
		return quiz.Question{}, err
	}
	res := s.db.WithContext(ctx).Model(&questionModel{}).Where("id = ?", q.ID).Updates(map[string]interface{}{
		"prompt":        m.Prompt,
		"question_type": m.QuestionType,
		"options":       m.Options,
		"answer":        m.Answer,
		"points":        m.Points,
		"updated_at":    m.UpdatedAt,
	})
	if res.Error != nil {
		return quiz.Question{}, core.StoreError(res.Error, "updating question")
	}
	if res.RowsAffected == 0 {
		return quiz.Question{}, core.NewNotFoundError("question", q.ID)
	}
	return s.GetQuestion(ctx, q.ID)
}

func (s *quizStore) GetQuestion(ctx context.Context, id string) (quiz.Question, error) {
	var m questionModel
	if err := s.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return quiz.Question{}, storeError(err, "question", id, "selecting question")
	}
	return m.toQuestion()
}

func (s *quizStore) GetQuestions(ctx context.Context, ids []string) ([]quiz.Question, error) {
	if len(ids) == 0 {
		return []quiz.Question{}, nil
	}
	var models []questionModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, core.StoreError(err, "selecting questions")
	}
	return toQuestions(models)
}

func (s *quizStore) QueryQuestions(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Question, error) {
	tx := s.db.WithContext(ctx).Model(&questionModel{})
	if filter.Type != "" {
		tx = tx.Where("question_type = ?", string(filter.Type))
	}
	var models []questionModel
	err := tx.Order(core.OrderBy(filter.Orderings, questionOrderings, "created_at DESC")).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, core.StoreError(err, "selecting questions")
	}
	return toQuestions(models)
}

func (s *quizStore) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	qids, err := json.Marshal(a.QuestionIDs)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "encoding question ids")
	}
	m := attemptModel{
		ID:          a.ID,
		LearnerID:   a.LearnerID,
		Status:      string(a.Status),
		QuestionIDs: string(qids),
		CreatedAt:   a.CreatedAt.UTC(),
	}
	if err = s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return quiz.Attempt{}, core.StoreError(err, "inserting attempt")
	}
	return s.GetAttempt(ctx, a.ID)
}

func getAttempt(tx *gorm.DB, id string) (quiz.Attempt, error) {
	var m attemptModel
	if err := tx.Take(&m, "id = ?", id).Error; err != nil {
		return quiz.Attempt{}, storeError(err, "attempt", id, "selecting attempt")
	}
	var subs []submissionModel
	if err := tx.Where("attempt_id = ?", id).Order("submitted_at, id").Find(&subs).Error; err != nil {
		return quiz.Attempt{}, core.StoreError(err, "selecting submissions")
	}

	a := quiz.Attempt{
		ID:          m.ID,
		LearnerID:   m.LearnerID,
		Status:      quiz.AttemptStatus(m.Status),
		Submissions: make([]quiz.Submission, 0, len(subs)),
		CreatedAt:   m.CreatedAt.UTC(),
		SubmittedAt: utcPtr(m.SubmittedAt),
		GradedAt:    utcPtr(m.GradedAt),
	}
	if err := json.Unmarshal([]byte(m.QuestionIDs), &a.QuestionIDs); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "decoding question ids")
	}
	if m.TotalPoints != nil {
		a.TotalPoints = *m.TotalPoints
	}
	if m.MaxPoints != nil {
		a.MaxPoints = *m.MaxPoints
	}

	scores := make(map[string]quiz.Score, len(subs))
	for _, sub := range subs {
		a.Submissions = append(a.Submissions, quiz.Submission{
			ID:          sub.ID,
			AttemptID:   sub.AttemptID,
			LearnerID:   sub.LearnerID,
			QuestionID:  sub.QuestionID,
			Answer:      sub.Answer,
			SubmittedAt: sub.SubmittedAt.UTC(),
		})
		if sub.Correct != nil {
			score := quiz.Score{SubmissionID: sub.ID, QuestionID: sub.QuestionID, Correct: *sub.Correct}
			if sub.Points != nil {
				score.Points = *sub.Points
			}
			scores[sub.QuestionID] = score
		}
	}
	if a.Status == quiz.Graded {
		a.Scores = make([]quiz.Score, 0, len(a.QuestionIDs))
		for _, qid := range a.QuestionIDs {
			if score, ok := scores[qid]; ok {
				a.Scores = append(a.Scores, score)
			}
		}
	}
	return a, nil
}

func (s *quizStore) GetAttempt(ctx context.Context, id string) (quiz.Attempt, error) {
	return getAttempt(s.db.WithContext(ctx), id)
}

// SaveAttempt updates the attempt only while its status is still `from`.
func (s *quizStore) SaveAttempt(ctx context.Context, a quiz.Attempt, from quiz.AttemptStatus) (quiz.Attempt, error) {
	var saved quiz.Attempt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total, maxPoints *int
		if a.Status == quiz.Graded {
			total, maxPoints = &a.TotalPoints, &a.MaxPoints
		}
		res := tx.Model(&attemptModel{}).
			Where("id = ? AND status = ?", a.ID, string(from)).
			Updates(map[string]interface{}{
				"status":       string(a.Status),
				"total_points": total,
				"max_points":   maxPoints,
				"submitted_at": utcPtr(a.SubmittedAt),
				"graded_at":    utcPtr(a.GradedAt),
			})
		if res.Error != nil {
			return core.StoreError(res.Error, "updating attempt")
		}
		if res.RowsAffected == 0 {
			var current attemptModel
			if err := tx.Select("status").Take(&current, "id = ?", a.ID).Error; err != nil {
				return storeError(err, "attempt", a.ID, "selecting attempt status")
			}
			return core.NewStateError("attempt is already " + current.Status)
		}

		scores := make(map[string]quiz.Score, len(a.Scores))
		for _, sc := range a.Scores {
			scores[sc.QuestionID] = sc
		}
		for _, sub := range a.Submissions {
			m := submissionModel{
				ID:          sub.ID,
				AttemptID:   a.ID,
				QuestionID:  sub.QuestionID,
				LearnerID:   sub.LearnerID,
				Answer:      sub.Answer,
				SubmittedAt: sub.SubmittedAt.UTC(),
			}
			if sc, ok := scores[sub.QuestionID]; ok {
				correct, points := sc.Correct, sc.Points
				m.Correct, m.Points = &correct, &points
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"answer", "submitted_at", "correct", "points"}),
			}).Create(&m).Error
			if err != nil {
				return core.StoreError(err, "upserting submission")
			}
		}

		var err error
		saved, err = getAttempt(tx, a.ID)
		return err
	})
	if err != nil {
		return quiz.Attempt{}, err
	}
	return saved, nil
}
