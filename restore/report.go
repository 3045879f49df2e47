package restore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Phase is a state of the restore state machine. States are passed in declaration
// order and never revisited.
type Phase string

const (
	TeardownChannels Phase = "teardown-channels"
	TeardownRoles    Phase = "teardown-roles"
	RestoreSettings  Phase = "restore-settings"
	RestoreRoles     Phase = "restore-roles"
	RestoreChannels  Phase = "restore-channels"
	RestoreEmoji     Phase = "restore-emoji"
	Done             Phase = "done"
)

// Phases lists the states in execution order.
var Phases = []Phase{TeardownChannels, TeardownRoles, RestoreSettings, RestoreRoles, RestoreChannels, RestoreEmoji, Done}

// Entity kinds recorded in outcomes.
const (
	KindChannel   = "channel"
	KindRole      = "role"
	KindSettings  = "settings"
	KindPositions = "positions"
	KindEmoji     = "emoji"
)

// Outcome is the result of one attempted write call.
type Outcome struct {
	Phase Phase  `json:"phase"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Report is the structured result of a restore run.
type Report struct {
	RunID    string    `json:"runId"`
	GuildID  string    `json:"guildId"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	// Reached is the last state entered. It is Done unless a fatal error aborted the run.
	Reached  Phase     `json:"reached"`
	Outcomes []Outcome `json:"outcomes"`
	// PositionsDegraded is set when the batched role reposition failed and the
	// hierarchy was accepted as created.
	PositionsDegraded bool              `json:"positionsDegraded"`
	RoleMap           map[string]string `json:"roleMap"`
	CategoryMap       map[string]string `json:"categoryMap"`
}

func (r *Report) record(phase Phase, kind, name string, err error) {
	o := Outcome{Phase: phase, Kind: kind, Name: name, OK: err == nil}
	if err != nil {
		o.Error = err.Error()
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Count returns the succeeded and total number of outcomes of a phase.
func (r *Report) Count(phase Phase) (succeeded, total int) {
	for _, o := range r.Outcomes {
		if o.Phase != phase {
			continue
		}
		total++
		if o.OK {
			succeeded++
		}
	}
	return succeeded, total
}

// Failures returns the failed outcomes in order.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK {
			out = append(out, o)
		}
	}
	return out
}

// Summary renders one line per phase, e.g. "restored 7/9 emoji".
func (r *Report) Summary() string {
	lines := []string{}
	for _, p := range []struct {
		phase Phase
		kind  string
		verb  string
		noun  string
	}{
		{TeardownChannels, KindChannel, "deleted", "channels"},
		{TeardownRoles, KindRole, "deleted", "roles"},
		{RestoreSettings, KindSettings, "applied", "settings"},
		{RestoreRoles, KindRole, "restored", "roles"},
		{RestoreChannels, KindChannel, "restored", "channels"},
		{RestoreEmoji, KindEmoji, "restored", "emoji"},
	} {
		ok, total := r.CountKind(p.phase, p.kind)
		lines = append(lines, fmt.Sprintf("%s %d/%d %s", p.verb, ok, total, p.noun))
	}
	if r.PositionsDegraded {
		lines = append(lines, "role hierarchy may differ from the snapshot")
	}
	return strings.Join(lines, "\n")
}

// CountKind is Count restricted to one entity kind.
func (r *Report) CountKind(phase Phase, kind string) (succeeded, total int) {
	for _, o := range r.Outcomes {
		if o.Phase != phase || o.Kind != kind {
			continue
		}
		total++
		if o.OK {
			succeeded++
		}
	}
	return succeeded, total
}

// ToJSON is used for webhooks.
func (r *Report) ToJSON() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}

// ToProm returns gauges describing the run.
func (r *Report) ToProm() []prometheus.Collector {
	entities := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "guildsnap",
		Subsystem: "restore",
		Name:      "entities",
		Help:      "Number of attempted write calls per phase and result of the last restore",
	}, []string{"guild", "phase", "result"})
	for _, phase := range Phases[:len(Phases)-1] {
		ok, total := r.Count(phase)
		entities.WithLabelValues(r.GuildID, string(phase), "succeeded").Set(float64(ok))
		entities.WithLabelValues(r.GuildID, string(phase), "failed").Set(float64(total - ok))
	}

	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "guildsnap",
		Subsystem: "restore",
		Name:      "duration_seconds",
		Help:      "Duration of the last restore",
	}, []string{"guild"})
	duration.WithLabelValues(r.GuildID).Set(r.Finished.Sub(r.Started).Seconds())

	return []prometheus.Collector{entities, duration}
}
