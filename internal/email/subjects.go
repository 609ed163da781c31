package email

const (
	subjectFollowUpDigest = "Leads due for follow-up today"
	subjectStaleReportFmt = "Weekly stale lead report: %d leads going cold"
	subjectInsightsFmt    = "Lead insights for %s"
)
