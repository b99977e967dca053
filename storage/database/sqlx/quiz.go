package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/quiz"
)

// questionOrderings maps the API ordering fields to columns.
var questionOrderings = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"question":     "prompt",
	"questionType": "question_type",
}

type (
	questionRow struct {
		ID           string      `db:"id"`
		Prompt       string      `db:"prompt"`
		QuestionType string      `db:"question_type"`
		Options      null.String `db:"options"` // JSON array
		Answer       string      `db:"answer"`
		Points       int         `db:"points"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	attemptRow struct {
		ID          string    `db:"id"`
		LearnerID   string    `db:"learner_id"`
		Status      string    `db:"status"`
		QuestionIDs string    `db:"question_ids"` // JSON array
		TotalPoints null.Int  `db:"total_points"`
		MaxPoints   null.Int  `db:"max_points"`
		CreatedAt   time.Time `db:"created_at"`
		SubmittedAt null.Time `db:"submitted_at"`
		GradedAt    null.Time `db:"graded_at"`
	}

	submissionRow struct {
		ID          string    `db:"id"`
		AttemptID   string    `db:"attempt_id"`
		QuestionID  string    `db:"question_id"`
		LearnerID   string    `db:"learner_id"`
		Answer      string    `db:"answer"`
		SubmittedAt time.Time `db:"submitted_at"`
		Correct     null.Bool `db:"correct"`
		Points      null.Int  `db:"points"`
	}
)

func newQuestionRow(q quiz.Question) (questionRow, error) {
	row := questionRow{
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
			return questionRow{}, errors.Wrap(err, "encoding options")
		}
		row.Options = null.StringFrom(string(opts))
	}
	return row, nil
}

func (r questionRow) toQuestion() (quiz.Question, error) {
	q := quiz.Question{
		ID:        r.ID,
		Prompt:    r.Prompt,
		Type:      quiz.QuestionType(r.QuestionType),
		Answer:    r.Answer,
		Points:    r.Points,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Options.Valid {
		if err := json.Unmarshal([]byte(r.Options.String), &q.Options); err != nil {
			return quiz.Question{}, errors.Wrap(err, "decoding options")
		}
	}
	return q, nil
}

func (r attemptRow) toAttempt(subs []submissionRow) (quiz.Attempt, error) {
	a := quiz.Attempt{
		ID:          r.ID,
		LearnerID:   r.LearnerID,
		Status:      quiz.AttemptStatus(r.Status),
		Submissions: make([]quiz.Submission, 0, len(subs)),
		TotalPoints: int(r.TotalPoints.Int),
		MaxPoints:   int(r.MaxPoints.Int),
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.QuestionIDs), &a.QuestionIDs); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "decoding question ids")
	}
	if r.SubmittedAt.Valid {
		t := r.SubmittedAt.Time.UTC()
		a.SubmittedAt = &t
	}
	if r.GradedAt.Valid {
		t := r.GradedAt.Time.UTC()
		a.GradedAt = &t
	}

	scores := make(map[string]quiz.Score, len(subs))
	for _, s := range subs {
		a.Submissions = append(a.Submissions, quiz.Submission{
			ID:          s.ID,
			AttemptID:   s.AttemptID,
			LearnerID:   s.LearnerID,
			QuestionID:  s.QuestionID,
			Answer:      s.Answer,
			SubmittedAt: s.SubmittedAt.UTC(),
		})
		if s.Correct.Valid {
			scores[s.QuestionID] = quiz.Score{
				SubmissionID: s.ID,
				QuestionID:   s.QuestionID,
				Correct:      s.Correct.Bool,
				Points:       int(s.Points.Int),
			}
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

type quizStore struct {
	db *sqlx.DB
}

var _ quiz.Store = (*quizStore)(nil)

func NewQuizStore(db *sqlx.DB) quiz.Store {
	return &quizStore{db: db}
}

const questionColumns = `id, prompt, question_type, options, answer, points, created_at, updated_at`

func (s *quizStore) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	row, err := newQuestionRow(q)
	if err != nil {
		return quiz.Question{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO questions (`+questionColumns+`)
		VALUES (:id, :prompt, :question_type, :options, :answer, :points, :created_at, :updated_at)`, row)
	if err != nil {
		return quiz.Question{}, core.StoreError(err, "inserting question")
	}
	return row.toQuestion()
}

func (s *quizStore) UpdateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	row, err := newQuestionRow(q)
	if err != nil {
		return quiz.Question{}, err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE questions
		SET prompt = :prompt, question_type = :question_type, options = :options,
			answer = :answer, points = :points, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return quiz.Question{}, core.StoreError(err, "updating question")
	}
	if n, err := res.RowsAffected(); err != nil {
		return quiz.Question{}, core.StoreError(err, "counting updated questions")
	} else if n == 0 {
		return quiz.Question{}, core.NewNotFoundError("question", q.ID)
	}
	return s.GetQuestion(ctx, q.ID)
}

func (s *quizStore) GetQuestion(ctx context.Context, id string) (quiz.Question, error) {
	var row questionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+questionColumns+` FROM questions WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Question{}, core.NewNotFoundError("question", id)
		}
		return quiz.Question{}, core.StoreError(err, "selecting question")
	}
	return row.toQuestion()
}

func (s *quizStore) GetQuestions(ctx context.Context, ids []string) ([]quiz.Question, error) {
	if len(ids) == 0 {
		return []quiz.Question{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+questionColumns+` FROM questions WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []questionRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, core.StoreError(err, "selecting questions")
	}
	return toQuestions(rows)
}

func (s *quizStore) QueryQuestions(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []interface{}
	if filter.Type != "" {
		query += ` WHERE question_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY ` + core.OrderBy(filter.Orderings, questionOrderings, "created_at DESC") + `, id`

	var rows []questionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, core.StoreError(err, "selecting questions")
	}
	return toQuestions(rows)
}

func toQuestions(rows []questionRow) ([]quiz.Question, error) {
	qs := make([]quiz.Question, 0, len(rows))
	for _, r := range rows {
		q, err := r.toQuestion()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func (s *quizStore) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	qids, err := json.Marshal(a.QuestionIDs)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "encoding question ids")
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO attempts (id, learner_id, status, question_ids, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		a.ID, a.LearnerID, string(a.Status), string(qids), a.CreatedAt.UTC(),
	)
	if err != nil {
		return quiz.Attempt{}, core.StoreError(err, "inserting attempt")
	}
	return s.GetAttempt(ctx, a.ID)
}

func getAttempt(ctx context.Context, q queryer, id string) (quiz.Attempt, error) {
	var row attemptRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`
		SELECT id, learner_id, status, question_ids, total_points, max_points, created_at, submitted_at, graded_at
		FROM attempts WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Attempt{}, core.NewNotFoundError("attempt", id)
		}
		return quiz.Attempt{}, core.StoreError(err, "selecting attempt")
	}

	var subs []submissionRow
	err = sqlx.SelectContext(ctx, q, &subs, q.Rebind(`
		SELECT id, attempt_id, question_id, learner_id, answer, submitted_at, correct, points
		FROM attempt_submissions WHERE attempt_id = ? ORDER BY submitted_at, id`), id)
	if err != nil {
		return quiz.Attempt{}, core.StoreError(err, "selecting submissions")
	}
	return row.toAttempt(subs)
}

func (s *quizStore) GetAttempt(ctx context.Context, id string) (quiz.Attempt, error) {
	return getAttempt(ctx, s.db, id)
}

// SaveAttempt moves the attempt out of `from` with a compare-and-set on its status, then upserts its submissions.
func (s *quizStore) SaveAttempt(ctx context.Context, a quiz.Attempt, from quiz.AttemptStatus) (quiz.Attempt, error) {
	var saved quiz.Attempt
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var total, maxPoints null.Int
		if a.Status == quiz.Graded {
			total = null.IntFrom(a.TotalPoints)
			maxPoints = null.IntFrom(a.MaxPoints)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE attempts
			SET status = ?, total_points = ?, max_points = ?, submitted_at = ?, graded_at = ?
			WHERE id = ? AND status = ?`),
			string(a.Status), total, maxPoints, null.TimeFromPtr(a.SubmittedAt), null.TimeFromPtr(a.GradedAt),
			a.ID, string(from),
		)
		if err != nil {
			return core.StoreError(err, "updating attempt")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.StoreError(err, "counting updated attempts")
		}
		if n == 0 {
			var status string
			err = tx.GetContext(ctx, &status, tx.Rebind(`SELECT status FROM attempts WHERE id = ?`), a.ID)
			if errors.Is(err, sql.ErrNoRows) {
				return core.NewNotFoundError("attempt", a.ID)
			} else if err != nil {
				return core.StoreError(err, "selecting attempt status")
			}
			return core.NewStateError("attempt is already " + status)
		}

		scores := make(map[string]quiz.Score, len(a.Scores))
		for _, sc := range a.Scores {
			scores[sc.QuestionID] = sc
		}
		for _, sub := range a.Submissions {
			var (
				correct null.Bool
				points  null.Int
			)
			if sc, ok := scores[sub.QuestionID]; ok {
				correct = null.BoolFrom(sc.Correct)
				points = null.IntFrom(sc.Points)
			}
			_, err = tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO attempt_submissions (id, attempt_id, question_id, learner_id, answer, submitted_at, correct, points)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (attempt_id, question_id) DO UPDATE
				SET answer = excluded.answer, submitted_at = excluded.submitted_at,
					correct = excluded.correct, points = excluded.points`),
				sub.ID, a.ID, sub.QuestionID, sub.LearnerID, sub.Answer, sub.SubmittedAt.UTC(), correct, points,
			)
			if err != nil {
				return core.StoreError(err, "upserting submission")
			}
		}

		saved, err = getAttempt(ctx, tx, a.ID)
		return err
	})
	if err != nil {
		return quiz.Attempt{}, err
	}
	return saved, nil
}
