package audit

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridianmed/marketing-compliance-backend/internal/domain/audit"
	"github.com/meridianmed/marketing-compliance-backend/internal/domain/errors"
)

// sensitiveEntities are the entity types whose reads count as sensitive in
// data-access reports.
var sensitiveEntities = map[string]struct{}{
	"patient":           {},
	"health_record":     {},
	"clinical_data":     {},
	"contact_health":    {},
	"evidence_document": {},
}

// Reporter builds structured compliance reports over a stored event window.
type Reporter struct {
	store    EventStore
	reports  ReportStore
	logger   *zap.Logger
	location *time.Location
}

func NewReporter(store EventStore, reports ReportStore, logger *zap.Logger, location *time.Location) *Reporter {
	if location == nil {
		location = time.Local
	}
	return &Reporter{
		store:    store,
		reports:  reports,
		logger:   logger,
		location: location,
	}
}

// Generate builds, persists, and returns one report over [start, end).
func (r *Reporter) Generate(ctx context.Context, reportType audit.ReportType, start, end time.Time, generatedBy string) (*audit.Report, error) {
	if !reportType.Valid() {
		return nil, errors.NewValidationError("INVALID_REPORT_TYPE",
			"unknown report type")
	}
	if !end.After(start) {
		return nil, errors.NewValidationError("INVALID_PERIOD",
			"report period end must be after start")
	}

	events, err := r.store.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &audit.Report{
		ID:          uuid.New(),
		Type:        reportType,
		PeriodStart: start,
		PeriodEnd:   end,
		GeneratedBy: generatedBy,
		GeneratedAt: time.Now().UTC(),
		Summary:     summarize(events),
	}

	switch reportType {
	case audit.ReportCompliance:
		report.Compliance = complianceDetail(events)
	case audit.ReportUserActivity:
		report.UserActivity = userActivityDetail(events)
	case audit.ReportDataAccess:
		report.DataAccess = dataAccessDetail(events)
	case audit.ReportSecurity:
		detail, err := r.securityDetail(ctx, events, start)
		if err != nil {
			return nil, err
		}
		report.Security = detail
	}

	if err := r.reports.InsertReport(ctx, report); err != nil {
		return nil, err
	}

	r.logger.Info("audit report generated",
		zap.String("report_id", report.ID.String()),
		zap.String("type", string(reportType)),
		zap.Int("events", len(events)),
	)
	return report, nil
}

func summarize(events []*audit.Event) audit.ReportSummary {
	summary := audit.ReportSummary{TotalEvents: len(events)}
	actors := make(map[string]struct{})
	for _, event := range events {
		actors[event.ActorID] = struct{}{}
		if event.ComplianceRelevant {
			summary.ComplianceEvents++
		}
		if event.IsHighRisk() {
			summary.HighRiskEvents++
		}
	}
	summary.UniqueActors = len(actors)
	return summary
}

func complianceDetail(events []*audit.Event) *audit.ComplianceDetail {
	detail := &audit.ComplianceDetail{
		ByRegulation: make(map[string]int),
		ByEventType:  make(map[string]int),
	}
	for _, event := range events {
		if !event.ComplianceRelevant {
			continue
		}
		detail.ByEventType[string(event.Type)]++
		regulation := "unspecified"
		if raw, ok := event.Metadata["regulation"]; ok {
			if s, ok := raw.(string); ok && s != "" {
				regulation = s
			}
		}
		detail.ByRegulation[regulation]++
	}
	return detail
}

func userActivityDetail(events []*audit.Event) *audit.UserActivityDetail {
	detail := &audit.UserActivityDetail{
		ActionsByActor: make(map[string]int),
		TopActions:     make(map[string]int),
	}
	actionCounts := make(map[string]int)
	for _, event := range events {
		detail.ActionsByActor[event.ActorID]++
		actionCounts[event.Action]++
	}

	// Keep the ten most frequent actions.
	type actionCount struct {
		action string
		count  int
	}
	ranked := make([]actionCount, 0, len(actionCounts))
	for action, count := range actionCounts {
		ranked = append(ranked, actionCount{action, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].action < ranked[j].action
	})
	for i, ac := range ranked {
		if i == 10 {
			break
		}
		detail.TopActions[ac.action] = ac.count
	}
	return detail
}

func dataAccessDetail(events []*audit.Event) *audit.DataAccessDetail {
	detail := &audit.DataAccessDetail{ByEntityType: make(map[string]int)}
	for _, event := range events {
		if event.Type != audit.EventDataAccess && event.Type != audit.EventDocumentViewed {
			continue
		}
		detail.TotalAccesses++
		detail.ByEntityType[event.EntityType]++
		if _, ok := sensitiveEntities[event.EntityType]; ok {
			detail.SensitiveAccesses++
		}
		if isBulkAccess(event.Action) {
			detail.BulkAccesses++
		}
	}
	return detail
}

func (r *Reporter) securityDetail(ctx context.Context, events []*audit.Event, periodStart time.Time) (*audit.SecurityDetail, error) {
	knownBefore, err := r.store.ListKnownAddrsBefore(ctx, periodStart)
	if err != nil {
		return nil, err
	}

	detail := &audit.SecurityDetail{}
	newAddrs := make(map[string]struct{})
	for _, event := range events {
		if event.Type == audit.EventAuthentication && isFailure(event) {
			detail.AuthFailures++
		}
		hour := event.Timestamp.In(r.location).Hour()
		if hour < afterHoursEnd || hour > afterHoursStart {
			detail.AfterHoursCount++
		}
		if event.SourceAddr == "" {
			continue
		}
		if _, known := knownBefore[event.SourceAddr]; !known {
			newAddrs[event.SourceAddr] = struct{}{}
		}
	}

	detail.NewSourceAddrs = make([]string, 0, len(newAddrs))
	for addr := range newAddrs {
		detail.NewSourceAddrs = append(detail.NewSourceAddrs, addr)
	}
	sort.Strings(detail.NewSourceAddrs)
	return detail, nil
}

func isFailure(event *audit.Event) bool {
	if raw, ok := event.Metadata["result"]; ok {
		if s, ok := raw.(string); ok {
			return s == "failure" || s == "denied"
		}
	}
	return false
}
