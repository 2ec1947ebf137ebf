package sqlite

// migrations returns the schema statements in order. Each string is a single
// statement; all of them are idempotent.
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS contributions (
			id          TEXT    PRIMARY KEY,
			scope_id    TEXT    NOT NULL,
			subject_id  TEXT    NOT NULL,
			amount      REAL    NOT NULL CHECK(amount > 0),
			proof_url   TEXT    NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			removed     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contributions_scope_subject
			ON contributions(scope_id, subject_id, removed, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_contributions_created
			ON contributions(created_at, removed)`,

		`CREATE TABLE IF NOT EXISTS duel_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			victim_id   TEXT    NOT NULL,
			scope_id    TEXT    NOT NULL,
			duration_ms INTEGER NOT NULL,
			actor_id    TEXT    NOT NULL DEFAULT '',
			backfire    INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_duel_events_scope_victim
			ON duel_events(scope_id, victim_id, created_at)`,
	}
}
