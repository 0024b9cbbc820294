package model

// NoRudimentPracticed is reported as the most practiced rudiment before any session exists.
const NoRudimentPracticed = "N/A"

// DashboardStats are the headline figures derived from a user's session log.
type DashboardStats struct {
	TotalTime     int64  `json:"totalTime"` // minutes
	FastestTempo  int    `json:"fastestTempo"`
	MostPracticed string `json:"mostPracticed"`
}
