package callsession

// Stats summarises a registry snapshot for the reporting endpoint.
type Stats struct {
	// TotalCalls is the number of sessions in the snapshot, ended or not.
	TotalCalls int `json:"total_calls"`

	// ActiveCalls counts sessions currently in StateActive.
	ActiveCalls int `json:"active_calls"`

	// TotalQueries sums QueryCount across all sessions.
	TotalQueries int `json:"total_queries"`

	// FailedSTT sums FailedSTTCount across all sessions.
	FailedSTT int `json:"failed_stt"`

	// ByLanguage is a histogram of sessions per selected language.
	// Sessions that never reached language selection are not counted.
	ByLanguage map[LanguageCode]int `json:"by_language"`

	// ByState is a histogram of sessions per lifecycle state.
	ByState map[State]int `json:"by_state"`
}

// Aggregate derives Stats from a registry snapshot (typically the result of
// [Store.GetAll]). It reads only the snapshot, so it is safe to call while
// the registry keeps mutating.
func Aggregate(sessions map[string]*Session) Stats {
	stats := Stats{
		ByLanguage: make(map[LanguageCode]int),
		ByState:    make(map[State]int),
	}
	for _, s := range sessions {
		stats.TotalCalls++
		stats.TotalQueries += s.QueryCount
		stats.FailedSTT += s.FailedSTTCount
		if s.State == StateActive {
			stats.ActiveCalls++
		}
		if s.Language != "" {
			stats.ByLanguage[s.Language]++
		}
		stats.ByState[s.State]++
	}
	return stats
}
