package migrations

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001InitialSchema(),
		migration002RecurringSchedules(),
		migration003WorkerTelemetry(),
		migration004AdminUnlimited(),
	}
}
