package model

// Profile holds the user's goals, used as context when asking for a plan.
// The zero value is the default for a user who never filled one in.
type Profile struct {
	ID              string `json:"id,omitempty"`
	Username        string `json:"username"`
	About           string `json:"about"`
	ShortTermGoals  string `json:"short_term_goals"`
	MediumTermGoals string `json:"medium_term_goals"`
	LongTermGoals   string `json:"long_term_goals"`
}
