package keyword

const (
	AdmissionTotalMetricName     = "estimator_admission_total"
	AgingTotalMetricName         = "estimator_aging_total"
	RotationsTotalMetricName     = "estimator_rotations_total"
	BenchOpsTotalMetricName      = "estimator_bench_ops_total"
	BenchPhaseDurationMetricName = "estimator_bench_phase_duration_seconds"
	SketchMemoryMetricName       = "estimator_sketch_memory_bytes"
)

const (
	Admitted = "admitted"
	Rejected = "rejected"
	Unseen   = "unseen"
)
