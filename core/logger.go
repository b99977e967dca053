package core

// Logger is any service that can report messages.
// expected args: error, map[string]interface{}, Learner
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Learner identifies the caller. It is read from the token claims.
type Learner struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// IsAuthor reports whether the learner may author questions.
func (l Learner) IsAuthor() bool {
	return HasAnyRole(l.Roles, AuthorRoles...)
}
