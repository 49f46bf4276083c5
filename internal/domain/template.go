package domain

import "time"

// Template is a channel-specific message body annotated with
// {{namespace.key}} placeholders. VariableSchema is the closed set of
// placeholders the template is allowed to reference; rendering fails if the
// body references anything outside it.
type Template struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Channel        Channel   `json:"channel" db:"channel"`
	Subject        string    `json:"subject,omitempty" db:"subject"` // email only
	Body           string    `json:"body" db:"body"`
	VariableSchema []string  `json:"variable_schema" db:"variable_schema"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DeclaresVariable reports whether the schema includes the given
// namespaced placeholder name.
func (t *Template) DeclaresVariable(name string) bool {
	for _, v := range t.VariableSchema {
		if v == name {
			return true
		}
	}
	return false
}
