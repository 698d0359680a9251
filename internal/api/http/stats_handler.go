package http

import (
	"net/http"

	"github.com/IvanBrykalov/memstore/internal/store"
)

// StatsResponse is the data of GET /v1/stats.
type StatsResponse struct {
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	HitRatio     float64 `json:"hit_ratio"`
	Evictions    uint64  `json:"evictions"`
	StaleRecords uint64  `json:"stale_records"`
	Rejected     uint64  `json:"rejected"`
	Underflows   uint64  `json:"underflows"`
	Entries      int     `json:"entries"`
	Weight       uint64  `json:"weight"`
	MaxWeight    uint64  `json:"max_weight"`
	MaxEntry     uint64  `json:"max_entry"`
	Segments     int     `json:"segments"`
}

func statsHandler(st *store.Store) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		s := st.Stats()
		writeSuccess(w, http.StatusOK, StatsResponse{
			Hits:         s.Hits,
			Misses:       s.Misses,
			HitRatio:     s.HitRatio(),
			Evictions:    s.Evictions,
			StaleRecords: s.StaleRecords,
			Rejected:     s.Rejected,
			Underflows:   s.Underflows,
			Entries:      s.Entries,
			Weight:       s.Weight,
			MaxWeight:    s.MaxWeight,
			MaxEntry:     st.MaxEntry(),
			Segments:     s.Segments,
		})
		return nil
	}
}
