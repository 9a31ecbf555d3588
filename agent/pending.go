package agent

import (
	"strings"

	"github.com/RuokeZhang/IntelliFlow/core"
)

// PendingQuestion is the clarifying question posed when the publish
// target cannot be determined. The recognized answers are the ones the
// default matcher accepts.
const PendingQuestion = `Where should I publish this? Reply "local" for the local workspace or "github" for the repository.`

// TargetMatcher interprets a user's answer to a pending question as a
// publish target selection. It is pluggable; richer intent classification
// can replace the default without touching the state machine.
type TargetMatcher interface {
	// Match returns the selected target and whether the answer was
	// recognized at all.
	Match(answer string) (core.ActionType, bool)
}

// KeywordMatcher is the default matcher: exact case-insensitive match
// against the enumerated targets, nothing fuzzier.
type KeywordMatcher struct{}

func (KeywordMatcher) Match(answer string) (core.ActionType, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "local":
		return core.PublishLocal, true
	case "github", "remote":
		return core.PublishRemote, true
	}
	return "", false
}

// resolution is the transition taken out of AWAITING_CONFIRMATION.
type resolution int

const (
	// resolved: the answer named a target; execute the deferred action.
	resolved resolution = iota
	// abandoned: unrecognized answer; clear the record and reprocess the
	// turn as a fresh prompt. Deliberate policy, not data loss.
	abandoned
)

// resolvePending classifies the user's turn against the posed question.
// Expiry never reaches here: the store reports an expired record as
// absent, which is the EXPIRED transition.
func resolvePending(matcher TargetMatcher, answer string) (core.ActionType, resolution) {
	if target, ok := matcher.Match(answer); ok {
		return target, resolved
	}
	return "", abandoned
}
