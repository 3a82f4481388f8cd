package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-090000",
		Description: "Initial schema: users, subscriptions, executions, transactions",
		Up: []string{
			// Users: wallet and credit pools. The id is the identity provider user ID.
			// active_subscription_id is a cache of the single active subscription row.
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'user',
				wallet_balance_paisa INTEGER NOT NULL DEFAULT 0 CHECK (wallet_balance_paisa >= 0),
				credits_free INTEGER NOT NULL DEFAULT 15,
				credits_purchased INTEGER NOT NULL DEFAULT 0 CHECK (credits_purchased >= 0),
				credits_granted INTEGER NOT NULL DEFAULT 0 CHECK (credits_granted >= 0),
				active_subscription_id TEXT,
				registered_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at)`,

			// Subscriptions: one row per plan period.
			`CREATE TABLE IF NOT EXISTS subscriptions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				plan TEXT NOT NULL,
				price_paisa INTEGER NOT NULL DEFAULT 0,
				credits_per_day INTEGER NOT NULL,
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				active INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				cancelled_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			// At most one active row and one scheduled row per user.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_active ON subscriptions(user_id) WHERE active = 1`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_scheduled ON subscriptions(user_id) WHERE status = 'scheduled'`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_status_start ON subscriptions(status, start_date)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_active_end ON subscriptions(active, end_date)`,

			// Executions: append-only attempt records. Daily free and subscription
			// usage is counted from these rows.
			`CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				credit_source TEXT NOT NULL,
				promotional_entry_id TEXT,
				language TEXT NOT NULL,
				code_encrypted TEXT NOT NULL DEFAULT '',
				input TEXT NOT NULL DEFAULT '',
				output TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				execution_time_ms INTEGER NOT NULL DEFAULT 0,
				credits_used INTEGER NOT NULL DEFAULT 1,
				plan_at_time TEXT NOT NULL DEFAULT 'free',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_executions_user_source_created ON executions(user_id, credit_source, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_executions_user_created ON executions(user_id, created_at DESC)`,

			// Transactions: append-only money and credit ledger.
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				type TEXT NOT NULL,
				amount_paisa INTEGER NOT NULL DEFAULT 0,
				credits INTEGER NOT NULL DEFAULT 0,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'completed',
				subscription_id TEXT,
				external_ref TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC)`,
			// Webhook idempotency: one row per (type, payment reference).
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_external_ref ON transactions(type, external_ref) WHERE external_ref IS NOT NULL`,
		},
	})
}
