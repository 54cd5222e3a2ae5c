package domain

import "context"

// Profile carries the per-user configuration the engine reads at evaluation
// time. It is owned by the user-profile collaborator and never cached by the
// engine beyond a single Apply call.
type Profile struct {
	UserID         string
	Timezone       string
	DailyFocusGoal int
}

// ProfileSource reads user profiles.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
}
