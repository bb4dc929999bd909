package quest

import "errors"

var (
	// ErrInvalidPeriod is returned for any period token other than
	// "daily", "weekly" or "monthly".
	ErrInvalidPeriod = errors.New("quest: invalid period")

	// ErrNoTemplates means the catalog has nothing to draw for a period.
	// It is a configuration error and is never retried.
	ErrNoTemplates = errors.New("quest: no templates for period")

	// ErrInvalidTemplate means a catalog entry breaks its invariants.
	ErrInvalidTemplate = errors.New("quest: invalid template")

	ErrPlayerNotFound      = errors.New("quest: player not found")
	ErrQuestNotFound       = errors.New("quest: quest not found")
	ErrPlayerQuestNotFound = errors.New("quest: player quest not found")
	ErrInvalidAmount       = errors.New("quest: progress amount must be positive")
	ErrNotCompleted        = errors.New("quest: quest not completed")
	ErrAlreadyClaimed      = errors.New("quest: reward already claimed")
	ErrQuestExpired        = errors.New("quest: quest expired")
	ErrClaimRejected       = errors.New("quest: claim rejected")

	// errSetExists signals that another trigger already committed a set
	// for the same window.
	errSetExists = errors.New("quest: set already exists for window")
)
