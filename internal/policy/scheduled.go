package policy

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/factsentry/factsentry/internal/vault"
)

// timeLayoutHHMM is the expected format for TimeWindow.From and TimeWindow.To.
const timeLayoutHHMM = "15:04"

// ScheduledQuery captures one non-interactive trigger evaluation.
type ScheduledQuery struct {
	SourceID        string
	RequestType     vault.TriggerKind
	RecipientDomain string
	PurposeCategory string
	PurposeAction   string
	Facts           []vault.Fact
	Now             time.Time
}

// CheckScheduledAllow evaluates scheduled rules for a non-interactive
// trigger. There is no user present to answer a challenge, so the only
// outcomes are allow and deny: the first active rule scoped to the source
// and trigger kind, inside its time window, with a satisfied cron gate,
// sensitivity ceiling, and field coverage, wins.
func CheckScheduledAllow(snap *vault.Snapshot, q ScheduledQuery) Verdict {
	if len(q.Facts) == 0 {
		return Verdict{Allow: false, Reason: "no facts matched"}
	}
	max := vault.MaxSensitivity(q.Facts)

	for i := range snap.ScheduledRules {
		r := &snap.ScheduledRules[i]
		if r.SourceID != q.SourceID {
			continue
		}
		if r.RequestType != q.RequestType {
			continue
		}
		if !r.Active(q.Now) {
			continue
		}
		if !windowContains(r.Window, q.Now) {
			continue
		}
		if !cronDue(r.CronExpr, q.Now) {
			continue
		}
		if !ruleMatches(&r.PolicyRule, q.RecipientDomain, q.PurposeCategory, q.PurposeAction, q.Facts, max) {
			continue
		}
		return Verdict{
			Allow:  true,
			Reason: fmt.Sprintf("matched scheduled rule %s for source %s", r.ID, q.SourceID),
			RuleID: r.ID,
		}
	}

	return Verdict{Allow: false, Reason: "no matching scheduled rule"}
}

// windowContains reports whether now's time-of-day falls inside the window,
// inclusive on both bounds. Windows with From > To wrap past midnight.
// A nil window always matches; an unparseable one never does (fail-closed).
func windowContains(w *vault.TimeWindow, now time.Time) bool {
	if w == nil {
		return true
	}
	from, err := time.Parse(timeLayoutHHMM, w.From)
	if err != nil {
		return false
	}
	to, err := time.Parse(timeLayoutHHMM, w.To)
	if err != nil {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	start := from.Hour()*60 + from.Minute()
	end := to.Hour()*60 + to.Minute()

	if start <= end {
		return minute >= start && minute <= end
	}
	// Overnight window, e.g. 22:00-06:00.
	return minute >= start || minute <= end
}

// cronDue reports whether the cron gate is open at now. An empty expression
// means no gate; an invalid one never fires (fail-closed).
func cronDue(expr string, now time.Time) bool {
	if expr == "" {
		return true
	}
	due, err := gronx.New().IsDue(expr, now)
	if err != nil {
		return false
	}
	return due
}
