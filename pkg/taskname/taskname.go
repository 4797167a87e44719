package taskname

// Asynq task types. The worker's ServeMux routes on these.
const (
	ScheduleApply  = "pricing:schedule:apply"
	ScheduleRevert = "pricing:schedule:revert"
)
