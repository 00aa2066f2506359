package db

import "github.com/VictoriaMetrics/metrics"

var (
	commitsTotal   = metrics.NewCounter(`tansu_commits_total`)
	discardsTotal  = metrics.NewCounter(`tansu_discards_total`)
	conflictsTotal = metrics.NewCounter(`tansu_head_conflicts_total`)
	rollbacksTotal = metrics.NewCounter(`tansu_rollbacks_total`)
	lookupsTotal   = metrics.NewCounter(`tansu_lookups_total`)
	scansTotal     = metrics.NewCounter(`tansu_scans_total`)
)
