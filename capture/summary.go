package capture

import (
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vshn/guildsnap/snapshot"
)

// Summary describes a stored snapshot for the stats sinks.
type Summary struct {
	GuildID    string    `json:"guildId"`
	GuildName  string    `json:"guildName"`
	SnapshotID string    `json:"snapshotId"`
	Timestamp  time.Time `json:"timestamp"`
	Roles      int       `json:"roles"`
	Categories int       `json:"categories"`
	Channels   int       `json:"channels"`
	Emojis     int       `json:"emojis"`
	Size       int64     `json:"size"`
}

// NewSummary counts the entities of snap. Channels excludes categories.
func NewSummary(snap *snapshot.Snapshot, snapshotID string, size int64) Summary {
	categories := len(snap.Categories())
	return Summary{
		GuildID:    snap.Metadata.GuildID,
		GuildName:  snap.Metadata.GuildName,
		SnapshotID: snapshotID,
		Timestamp:  snap.Metadata.Timestamp,
		Roles:      len(snap.Roles),
		Categories: categories,
		Channels:   len(snap.Channels) - categories,
		Emojis:     len(snap.Emojis),
		Size:       size,
	}
}

func (s Summary) ToJSON() []byte {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return data
}

func (s Summary) ToProm() []prometheus.Collector {
	entities := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "guildsnap",
		Subsystem: "capture",
		Name:      "entities",
		Help:      "Number of entities in the last snapshot",
	}, []string{"guild", "kind"})
	entities.WithLabelValues(s.GuildID, "role").Set(float64(s.Roles))
	entities.WithLabelValues(s.GuildID, "category").Set(float64(s.Categories))
	entities.WithLabelValues(s.GuildID, "channel").Set(float64(s.Channels))
	entities.WithLabelValues(s.GuildID, "emoji").Set(float64(s.Emojis))

	size := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "guildsnap",
		Subsystem: "capture",
		Name:      "size_bytes",
		Help:      "Archive size of the last snapshot",
	}, []string{"guild"})
	size.WithLabelValues(s.GuildID).Set(float64(s.Size))

	last := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "guildsnap",
		Subsystem: "capture",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful snapshot",
	}, []string{"guild"})
	last.WithLabelValues(s.GuildID).Set(float64(s.Timestamp.Unix()))

	return []prometheus.Collector{entities, size, last}
}
