package domain

// GameResult is one player's final standing in a completed game, persisted
// for the leaderboard history.
type GameResult struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}
