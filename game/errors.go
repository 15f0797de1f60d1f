package game

import "errors"

// ErrNoActiveGame means a submission arrived for a channel with no open
// answer window.
var ErrNoActiveGame = errors.New("no active game for channel")

// ErrAttemptsExhausted means this user has spent their attempt cap on the
// current instance. Terminal for that user only; other users may still
// answer.
var ErrAttemptsExhausted = errors.New("attempts exhausted for this question")
