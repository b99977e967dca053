package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/quiz"
)

type quizStore struct {
	db *quizTables
}

var _ quiz.Store = (*quizStore)(nil)

func NewQuizStore(db *DB) quiz.Store {
	return &quizStore{db: db.quiz}
}

func copyQuestion(q quiz.Question) quiz.Question {
	if q.Options != nil {
		q.Options = append([]string{}, q.Options...)
	}
	return q
}

func copyAttempt(a quiz.Attempt) quiz.Attempt {
	a.QuestionIDs = append([]string{}, a.QuestionIDs...)
	a.Submissions = append([]quiz.Submission{}, a.Submissions...)
	if a.Scores != nil {
		a.Scores = append([]quiz.Score{}, a.Scores...)
	}
	return a
}

func (s *quizStore) CreateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	s.db.Lock()
	defer s.db.Unlock()

	s.db.questions[q.ID] = copyQuestion(q)
	return q, nil
}

func (s *quizStore) UpdateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	s.db.Lock()
	defer s.db.Unlock()

	orig, ok := s.db.questions[q.ID]
	if !ok {
		return quiz.Question{}, core.NewNotFoundError("question", q.ID)
	}
	q.CreatedAt = orig.CreatedAt
	s.db.questions[q.ID] = copyQuestion(q)
	return q, nil
}

func (s *quizStore) GetQuestion(_ context.Context, id string) (quiz.Question, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	q, ok := s.db.questions[id]
	if !ok {
		return quiz.Question{}, core.NewNotFoundError("question", id)
	}
	return copyQuestion(q), nil
}

func (s *quizStore) GetQuestions(_ context.Context, ids []string) ([]quiz.Question, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	qs := make([]quiz.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.db.questions[id]; ok {
			qs = append(qs, copyQuestion(q))
		}
	}
	return qs, nil
}

func (s *quizStore) QueryQuestions(_ context.Context, filter quiz.QueryFilter) ([]quiz.Question, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	qs := make([]quiz.Question, 0, len(s.db.questions))
	for _, q := range s.db.questions {
		if filter.Type == "" || q.Type == filter.Type {
			qs = append(qs, copyQuestion(q))
		}
	}
	sortQuestions(qs, filter.Orderings)
	return qs, nil
}

// sortQuestions supports the same ordering fields as the SQL stores. Default: newest first.
func sortQuestions(qs []quiz.Question, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(qs, func(i, j int) bool {
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "created_at":
				cmp = qs[i].CreatedAt.Compare(qs[j].CreatedAt)
			case "updated_at":
				cmp = qs[i].UpdatedAt.Compare(qs[j].UpdatedAt)
			case "question":
				cmp = strings.Compare(qs[i].Prompt, qs[j].Prompt)
			case "questionType":
				cmp = strings.Compare(string(qs[i].Type), string(qs[j].Type))
			default:
				continue
			}
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return qs[i].ID < qs[j].ID
	})
}

func (s *quizStore) CreateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	s.db.Lock()
	defer s.db.Unlock()

	s.db.attempts[a.ID] = copyAttempt(a)
	return a, nil
}

func (s *quizStore) GetAttempt(_ context.Context, id string) (quiz.Attempt, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	a, ok := s.db.attempts[id]
	if !ok {
		return quiz.Attempt{}, core.NewNotFoundError("attempt", id)
	}
	return copyAttempt(a), nil
}

func (s *quizStore) SaveAttempt(_ context.Context, a quiz.Attempt, from quiz.AttemptStatus) (quiz.Attempt, error) {
	s.db.Lock()
	defer s.db.Unlock()

	orig, ok := s.db.attempts[a.ID]
	if !ok {
		return quiz.Attempt{}, core.NewNotFoundError("attempt", a.ID)
	}
	if orig.Status != from {
		return quiz.Attempt{}, core.NewStateError("attempt is already " + string(orig.Status))
	}
	// keep answers saved concurrently by the same learner
	for _, sub := range orig.Submissions {
		if !hasSubmission(a.Submissions, sub.QuestionID) {
			a.Submissions = append(a.Submissions, sub)
		}
	}
	s.db.attempts[a.ID] = copyAttempt(a)
	return copyAttempt(a), nil
}

func hasSubmission(subs []quiz.Submission, questionID string) bool {
	for _, sub := range subs {
		if sub.QuestionID == questionID {
			return true
		}
	}
	return false
}
