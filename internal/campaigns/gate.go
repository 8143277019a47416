package campaigns

import (
	"strings"
	"time"
)

// GateResult is the outcome of the per-call eligibility check.
type GateResult struct {
	Allowed bool
	// Reason is the pause reason to record when Allowed is false.
	Reason PauseReason
}

// CheckGate decides whether c may place a call at now. now must already be in
// the engine's calling timezone.
func CheckGate(c Campaign, now time.Time) GateResult {
	if !c.CallingDays.Contains(now.Weekday()) || !inWindow(c.StartHour, c.EndHour, now.Hour()) {
		return GateResult{Reason: PauseOutsideWindow}
	}
	if c.CurrentDailyCalls >= c.DailyCap {
		return GateResult{Reason: PauseDailyCap}
	}
	return GateResult{Allowed: true}
}

// inWindow checks hour against [start,end). 0/0 is unrestricted; start > end
// wraps past midnight.
func inWindow(start, end, hour int) bool {
	switch {
	case start == 0 && end == 0:
		return true
	case start < end:
		return hour >= start && hour < end
	case start > end:
		return hour >= start || hour < end
	default:
		return false
	}
}

// NextEligibleTime returns the earliest instant at or after now when the gate
// could pass for reason. A cap pause cannot lift before the next calendar day.
// The zero time is returned if no instant in the coming week qualifies.
func NextEligibleTime(c Campaign, reason PauseReason, now time.Time) time.Time {
	loc := now.Location()
	y, m, d := now.Date()
	first := 0
	if reason == PauseDailyCap {
		first = 1
	}
	for off := first; off <= 7; off++ {
		for h := 0; h < 24; h++ {
			cand := time.Date(y, m, d+off, h, 0, 0, 0, loc)
			if off == 0 && h == now.Hour() {
				cand = now
			}
			if cand.Before(now) {
				continue
			}
			if c.CallingDays.Contains(cand.Weekday()) && inWindow(c.StartHour, c.EndHour, cand.Hour()) {
				return cand
			}
		}
	}
	return time.Time{}
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Interpolate fills the {name}, {email} and {phone} placeholders of a prompt
// template. Matching is case-sensitive; other braces are left alone.
func Interpolate(template, name, email, phone string) string {
	return strings.NewReplacer("{name}", name, "{email}", email, "{phone}", phone).Replace(template)
}
