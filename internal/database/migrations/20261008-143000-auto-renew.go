package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261008-143000",
		Description: "Add auto-renew opt-in to users",
		Up: []string{
			// Renewal sweep only charges users who opted in.
			`ALTER TABLE users ADD COLUMN auto_renew INTEGER NOT NULL DEFAULT 0`,
		},
	})
}
