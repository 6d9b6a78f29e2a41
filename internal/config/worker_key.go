package config

type WorkerKeyStruct struct {
	RecomputeStatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	RecomputeStatsQueue: "recompute_stats_queue",
}
