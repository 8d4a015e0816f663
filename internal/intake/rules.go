package intake

import (
	"strings"

	"github.com/linnemanlabs/intake/internal/session"
)

// Decision is the rule engine's output: a recommendation with its reason and
// the red flags that drove it. The SOAP note and timestamp are added later
// by the orchestrator.
type Decision struct {
	Recommendation session.Recommendation `json:"recommendation"`
	Reason         string                 `json:"reason"`
	RedFlags       []string               `json:"redFlags"`
}

const (
	reasonUrgent     = "Potential red flags were detected from the provided information."
	reasonScheduleGP = "Symptoms appear non-emergent but should be reviewed by a clinician soon."
	reasonSelfCare   = "No immediate red flags were detected from the provided details."
)

const (
	flagChestPain = "Chest pain"
	flagBreathing = "Breathing difficulty"
	flagNeuro     = "Neurologic warning signs"
	flagHighFever = "High fever (>=39C)"
)

// Decide applies the deterministic safety rules to a case record. It is a
// pure function: identical input always yields an identical decision.
//
// Rule order is fixed: the declared red flags are unioned with flags derived
// from case-insensitive symptom scans and the fever reading; any flag forces
// urgent. Otherwise moderate severity or fever >= 38 schedules a GP visit,
// and everything else is self care. Urgent strictly dominates schedule_gp,
// which strictly dominates self_care; the first matching rule wins.
func Decide(c session.CaseData) Decision {
	flags := []string{}
	seen := make(map[string]bool)
	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			return
		}
		seen[f] = true
		flags = append(flags, f)
	}

	for _, f := range c.RedFlags {
		add(f)
	}

	symptoms := make([]string, len(c.Symptoms))
	for i, s := range c.Symptoms {
		symptoms[i] = strings.ToLower(s)
	}
	anySymptom := func(subs ...string) bool {
		for _, s := range symptoms {
			for _, sub := range subs {
				if strings.Contains(s, sub) {
					return true
				}
			}
		}
		return false
	}

	if anySymptom("chest pain") {
		add(flagChestPain)
	}
	if anySymptom("shortness of breath", "trouble breathing") {
		add(flagBreathing)
	}
	if anySymptom("faint", "confusion") {
		add(flagNeuro)
	}
	if c.FeverC != nil && *c.FeverC >= 39 {
		add(flagHighFever)
	}

	if len(flags) > 0 {
		return Decision{
			Recommendation: session.RecUrgent,
			Reason:         reasonUrgent,
			RedFlags:       flags,
		}
	}

	moderate := strings.Contains(strings.ToLower(c.Severity), "moderate") ||
		(c.FeverC != nil && *c.FeverC >= 38)
	if moderate {
		return Decision{
			Recommendation: session.RecScheduleGP,
			Reason:         reasonScheduleGP,
			RedFlags:       []string{},
		}
	}

	return Decision{
		Recommendation: session.RecSelfCare,
		Reason:         reasonSelfCare,
		RedFlags:       []string{},
	}
}
