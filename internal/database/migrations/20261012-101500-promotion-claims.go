package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261012-101500",
		Description: "Track promotion claims so spent entries are not granted again",
		Up: []string{
			// A claim outlives its promotional_credits entry, which is pruned at zero.
			`CREATE TABLE IF NOT EXISTS promotion_claims (
				promotion_id TEXT NOT NULL REFERENCES promotions(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at TEXT NOT NULL,
				PRIMARY KEY (promotion_id, user_id)
			)`,
		},
	})
}
