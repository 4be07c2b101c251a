package observability

// Observer is the logging and metrics port every component reports through.
type Observer interface {
	LogDebug(msg string, fields ...Field)
	LogInfo(msg string, fields ...Field)
	LogNotice(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
	ObserveLatency(name string, seconds float64)
}

type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Metric names.
const (
	PacketsTotal         = "sdnguard_packets_total"
	PacketsUnparsedTotal = "sdnguard_packets_unparsed_total"
	WindowsTotal         = "sdnguard_windows_total"
	MigrationsTriggered  = "sdnguard_migrations_triggered_total"
	BatchesEnqueued      = "sdnguard_batches_enqueued_total"
	CommandsExecuted     = "sdnguard_commands_executed_total"
	CommandsFailed       = "sdnguard_commands_failed_total"

	BindingsGauge       = "sdnguard_bindings"
	MigrationStateGauge = "sdnguard_migration_state"
	LatchGauge          = "sdnguard_latch_engaged"

	ProbeLatency  = "sdnguard_probe_latency_seconds"
	BatchDuration = "sdnguard_batch_duration_seconds"
)
