package scheduler

// Task type names double as job names in the registry and in schedule
// override files.
const (
	TaskRescoreStale          = "leads:rescore_stale"
	TaskRecalculatePriorities = "leads:recalculate_priorities"
	TaskAutoAssign            = "leads:auto_assign"
	TaskSendReminders         = "followups:send_reminders"
	TaskCleanupAbandonedCarts = "carts:cleanup_abandoned"
	TaskStaleReport           = "leads:stale_report"
	TaskInsightsDigest        = "insights:digest"
	TaskDispatchCampaigns     = "campaigns:dispatch_scheduled"
)

// defaultSchedules maps every job to its cron spec. Individual entries can
// be overridden through the schedule file.
var defaultSchedules = map[string]string{
	TaskRescoreStale:          "0 4 * * *",
	TaskRecalculatePriorities: "30 4 * * *",
	TaskAutoAssign:            "0 5 * * *",
	TaskSendReminders:         "0 8 * * *",
	TaskCleanupAbandonedCarts: "0 3 * * *",
	TaskStaleReport:           "0 7 * * 1",
	TaskInsightsDigest:        "0 * * * *",
	TaskDispatchCampaigns:     "* * * * *",
}
