package email

import "fmt"

const (
	subjectImpactReportFmt        = "Surge outlook for week of %s"
	subjectImpactReportPartialFmt = "[partial] Surge outlook for week of %s"
	subjectJobAlertFmt            = "[%s] %s"
)

func impactReportSubject(r ImpactReport) string {
	if r.Partial {
		return fmt.Sprintf(subjectImpactReportPartialFmt, r.TargetWeekStart)
	}
	return fmt.Sprintf(subjectImpactReportFmt, r.TargetWeekStart)
}

func runSummary(r ImpactReport) string {
	s := fmt.Sprintf("%d regions forecast, %d failed", r.Successful, r.Failed)
	if r.Partial {
		s += "; the run hit its time budget"
	}
	return s
}
