package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-091500",
		Description: "Add promotions, per-user promotional credits and admin grants",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS promotions (
				id TEXT PRIMARY KEY,
				offer_name TEXT NOT NULL UNIQUE,
				credits INTEGER NOT NULL CHECK (credits > 0),
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				created_by TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// One entry per user per offer; matched to promotions by offer_name.
			`CREATE TABLE IF NOT EXISTS promotional_credits (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				offer_name TEXT NOT NULL,
				amount INTEGER NOT NULL CHECK (amount >= 0),
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE(user_id, offer_name)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_promotional_credits_user ON promotional_credits(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_promotional_credits_end ON promotional_credits(end_date)`,

			`CREATE TABLE IF NOT EXISTS admin_grants (
				id TEXT PRIMARY KEY,
				admin_id TEXT NOT NULL,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				credits INTEGER NOT NULL CHECK (credits > 0),
				reason TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_admin_grants_user ON admin_grants(user_id, created_at DESC)`,
		},
	})
}
