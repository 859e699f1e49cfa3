// Package intervention owns the lifecycle of crisis cases: creation,
// risk-assessment updates, safety-plan attachment, escalation, and
// resolution. All mutating transitions for one case are serialized; a
// resolved case admits no further transitions.
package intervention

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/mamori/internal/escalation"
	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/telemetry"
)

// Store persists intervention case records and safety plans.
type Store interface {
	InsertIntervention(ctx context.Context, iv model.CrisisIntervention) error
	GetIntervention(ctx context.Context, id uuid.UUID) (model.CrisisIntervention, error)
	UpdateIntervention(ctx context.Context, iv model.CrisisIntervention) error
	InsertSafetyPlan(ctx context.Context, plan model.SafetyPlan) error
	ActiveInterventions(ctx context.Context, filters model.ActiveCrisisFilters) ([]model.CrisisIntervention, error)
}

// Responder coordinates human response to a case. The engine's job ends at
// producing a correctly tiered signal; contacting anyone is the
// collaborator's responsibility, including its own retry policy.
type Responder interface {
	Notify(ctx context.Context, tier model.ResponderTier, interventionID uuid.UUID) error
}

// Scheduler books follow-up contact after resolution.
type Scheduler interface {
	Schedule(ctx context.Context, interventionID uuid.UUID, plan model.FollowUpPlan) error
}

// EventSink receives domain events. Best effort.
type EventSink interface {
	Publish(ctx context.Context, event model.CrisisEvent) error
}

// AuditSink appends compliance records in the background.
type AuditSink interface {
	Record(ctx context.Context, entry model.AuditEntry)
}

// dispatchTimeout bounds one outbound responder notification.
const dispatchTimeout = 10 * time.Second

// Service is the crisis intervention state machine.
type Service struct {
	store     Store
	responder Responder
	scheduler Scheduler
	audit     AuditSink
	events    EventSink
	logger    *slog.Logger
	locks     caseLocks

	initiated  metric.Int64Counter
	escalated  metric.Int64Counter
	dispatched metric.Int64Counter
}

// New creates the intervention Service. responder, scheduler, audit, and
// events may each be nil; the corresponding side effect is skipped.
func New(store Store, responder Responder, scheduler Scheduler, audit AuditSink, events EventSink, logger *slog.Logger) *Service {
	meter := telemetry.Meter("mamori/intervention")
	initiated, _ := meter.Int64Counter("mamori.interventions.initiated",
		metric.WithDescription("Crisis interventions initiated"),
	)
	escalated, _ := meter.Int64Counter("mamori.interventions.escalated",
		metric.WithDescription("Crisis interventions escalated"),
	)
	dispatched, _ := meter.Int64Counter("mamori.responder.dispatched",
		metric.WithDescription("Responder signals dispatched"),
	)
	return &Service{
		store:      store,
		responder:  responder,
		scheduler:  scheduler,
		audit:      audit,
		events:     events,
		logger:     logger,
		initiated:  initiated,
		escalated:  escalated,
		dispatched: dispatched,
	}
}

// Initiate opens a new case in Active status. Without a severity hint the
// initial severity comes from the crisis-type table, and the follow-up
// timeframe from the severity. The tiered immediate-response signal fires
// before this returns control, but never blocks on the responder.
func (s *Service) Initiate(ctx context.Context, req model.InitiateRequest) (model.CrisisIntervention, error) {
	if err := req.Validate(); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", err)
	}

	severity := model.InitialSeverityForType(req.CrisisType)
	if req.SeverityHint != nil {
		severity = *req.SeverityHint
	}

	now := time.Now().UTC()
	iv := model.CrisisIntervention{
		ID:          uuid.New(),
		UserID:      req.UserID,
		CrisisType:  req.CrisisType,
		Severity:    severity,
		Status:      model.StatusActive,
		Description: req.Description,
		InitiatedBy: req.InitiatedBy,
		ReportedAt:  now,
		Actions:     []model.InterventionAction{},
		FollowUp: model.FollowUpPlan{
			ImmediateContactWithin: model.FollowUpTimeframe(severity),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.InsertIntervention(ctx, iv); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: insert: %w", err)
	}

	s.dispatch(iv.Severity, iv.ID)
	s.recordAudit(ctx, model.EventInterventionInitiated, req.InitiatedBy, iv.ID, map[string]any{
		"crisis_type": iv.CrisisType,
		"severity":    iv.Severity.String(),
		"user_id":     iv.UserID,
	})
	s.publish(ctx, model.EventInterventionInitiated, iv)

	if s.initiated != nil {
		s.initiated.Add(ctx, 1)
	}
	s.logger.Info("intervention initiated",
		"intervention_id", iv.ID,
		"crisis_type", iv.CrisisType,
		"severity", iv.Severity,
	)
	return iv, nil
}

// Get returns a single case by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.CrisisIntervention, error) {
	iv, err := s.store.GetIntervention(ctx, id)
	if err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", err)
	}
	return iv, nil
}

// UpdateAssessment merges partial risk and safety data into the case,
// re-derives severity from the merged risk level, appends the new actions,
// and runs the escalation check. A severity increase escalates the case:
// status moves to Escalated and the tiered response signal re-fires at the
// new severity.
func (s *Service) UpdateAssessment(ctx context.Context, id uuid.UUID, req model.UpdateRequest) (model.CrisisIntervention, error) {
	if err := req.Validate(); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", err)
	}

	mu := s.locks.lock(id)
	mu.Lock()
	defer mu.Unlock()

	iv, err := s.store.GetIntervention(ctx, id)
	if err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", err)
	}
	if iv.Status.Terminal() {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", model.ErrAlreadyResolved)
	}

	now := time.Now().UTC()
	previousSeverity := iv.Severity

	risk := req.Risk
	risk.AssessedBy = req.AssessorID
	risk.AssessedAt = now
	iv.Risk = iv.Risk.Merge(risk)
	if req.Safety != nil {
		iv.Safety = iv.Safety.Merge(*req.Safety)
	}
	for _, a := range req.Actions {
		iv.Actions = append(iv.Actions, model.InterventionAction{
			Action:      a.Action,
			PerformedBy: req.AssessorID,
			PerformedAt: now,
			Outcome:     a.Outcome,
		})
	}

	iv.Severity = model.SeverityFromRisk(iv.Risk.RiskLevel)
	iv.UpdatedAt = now

	// Any severity increase escalates the case. IsEscalation additionally
	// covers a case that newly crosses the immediate threshold.
	increased := iv.Severity > previousSeverity
	qualifies := escalation.IsEscalation(
		model.CrisisAssessment{Severity: previousSeverity, RequiresImmediate: previousSeverity.RequiresImmediate()},
		model.CrisisAssessment{Severity: iv.Severity, RequiresImmediate: iv.Severity.RequiresImmediate()},
	)
	if increased || qualifies {
		iv.Status = model.StatusEscalated
	}

	if err := s.store.UpdateIntervention(ctx, iv); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: update: %w", err)
	}

	if increased || qualifies {
		s.dispatch(iv.Severity, iv.ID)
		s.recordAudit(ctx, model.EventInterventionEscalated, req.AssessorID, iv.ID, map[string]any{
			"previous_severity": previousSeverity.String(),
			"severity":          iv.Severity.String(),
		})
		s.publish(ctx, model.EventInterventionEscalated, iv)
		if s.escalated != nil {
			s.escalated.Add(ctx, 1)
		}
	}
	s.recordAudit(ctx, model.EventInterventionUpdated, req.AssessorID, iv.ID, map[string]any{
		"severity":     iv.Severity.String(),
		"risk_level":   iv.Risk.RiskLevel,
		"action_count": len(req.Actions),
	})
	s.publish(ctx, model.EventInterventionUpdated, iv)

	return iv, nil
}

// CreateSafetyPlan attaches a new safety plan to the case. The plan must be
// created by the case's own user; the audit record carries counts only,
// never raw plan content.
func (s *Service) CreateSafetyPlan(ctx context.Context, interventionID uuid.UUID, req model.SafetyPlanRequest) (model.SafetyPlan, error) {
	if err := req.Validate(); err != nil {
		return model.SafetyPlan{}, fmt.Errorf("intervention: %w", err)
	}

	mu := s.locks.lock(interventionID)
	mu.Lock()
	defer mu.Unlock()

	iv, err := s.store.GetIntervention(ctx, interventionID)
	if err != nil {
		return model.SafetyPlan{}, fmt.Errorf("intervention: %w", err)
	}
	if iv.UserID != req.UserID {
		return model.SafetyPlan{}, fmt.Errorf("intervention: %w", model.ErrOwnershipMismatch)
	}
	if iv.Status.Terminal() {
		return model.SafetyPlan{}, fmt.Errorf("intervention: %w", model.ErrAlreadyResolved)
	}

	now := time.Now().UTC()
	plan := model.SafetyPlan{
		ID:                uuid.New(),
		InterventionID:    interventionID,
		UserID:            req.UserID,
		WarningSigns:      req.WarningSigns,
		CopingStrategies:  req.CopingStrategies,
		Contacts:          req.Contacts,
		MeansRestrictions: req.MeansRestrictions,
		ReasonsForLiving:  req.ReasonsForLiving,
		CrisisHotlines:    req.CrisisHotlines,
		CreatedAt:         now,
		LastReviewed:      now,
	}

	if err := s.store.InsertSafetyPlan(ctx, plan); err != nil {
		return model.SafetyPlan{}, fmt.Errorf("intervention: insert safety plan: %w", err)
	}
	iv.SafetyPlanID = &plan.ID
	iv.UpdatedAt = now
	if err := s.store.UpdateIntervention(ctx, iv); err != nil {
		return model.SafetyPlan{}, fmt.Errorf("intervention: attach safety plan: %w", err)
	}

	s.recordAudit(ctx, model.EventSafetyPlanCreated, req.UserID, iv.ID, map[string]any{
		"safety_plan_id":           plan.ID.String(),
		"contact_count":            len(plan.Contacts),
		"coping_strategy_count":    len(plan.CopingStrategies),
		"reasons_for_living_count": len(plan.ReasonsForLiving),
		"means_restriction_count":  len(plan.MeansRestrictions),
	})
	s.publish(ctx, model.EventSafetyPlanCreated, iv)

	s.logger.Info("safety plan created",
		"intervention_id", iv.ID,
		"safety_plan_id", plan.ID,
		"contacts", len(plan.Contacts),
	)
	return plan, nil
}

// Resolve closes the case. Resolution is terminal: resolving an already
// resolved case fails with AlreadyResolved and mutates nothing.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, req model.ResolveRequest) (model.CrisisIntervention, error) {
	if err := req.Validate(); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", err)
	}

	mu := s.locks.lock(id)
	mu.Lock()
	defer mu.Unlock()

	iv, err := s.store.GetIntervention(ctx, id)
	if err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", err)
	}
	if iv.Status.Terminal() {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: %w", model.ErrAlreadyResolved)
	}

	now := time.Now().UTC()
	disposition := req.Disposition
	iv.Status = model.StatusResolved
	iv.ResolvedAt = &now
	iv.Disposition = &disposition
	iv.Effectiveness = &req.Effectiveness
	if req.FinalNotes != "" {
		iv.Narrative = append(iv.Narrative, req.FinalNotes)
	}
	iv.FollowUp.ResponsibleParty = req.ResolverID
	iv.UpdatedAt = now

	if err := s.store.UpdateIntervention(ctx, iv); err != nil {
		return model.CrisisIntervention{}, fmt.Errorf("intervention: resolve: %w", err)
	}

	duration := now.Sub(iv.ReportedAt)
	if disposition.FollowUpRequired && s.scheduler != nil {
		if err := s.scheduler.Schedule(ctx, iv.ID, iv.FollowUp); err != nil {
			// Follow-up booking is a collaborator concern; the case is
			// resolved regardless.
			s.logger.Error("intervention: schedule follow-up", "intervention_id", iv.ID, "error", err)
		}
	}

	s.recordAudit(ctx, model.EventInterventionResolved, req.ResolverID, iv.ID, map[string]any{
		"outcome":            disposition.Outcome,
		"effectiveness":      req.Effectiveness,
		"follow_up_required": disposition.FollowUpRequired,
		"duration_seconds":   int64(duration.Seconds()),
	})
	s.publish(ctx, model.EventInterventionResolved, iv)

	s.logger.Info("intervention resolved",
		"intervention_id", iv.ID,
		"outcome", disposition.Outcome,
		"duration", duration,
	)
	return iv, nil
}

// GetActive lists unresolved cases, most severe first, oldest report first
// within a severity.
func (s *Service) GetActive(ctx context.Context, filters model.ActiveCrisisFilters) ([]model.CrisisIntervention, error) {
	out, err := s.store.ActiveInterventions(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("intervention: list active: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].ReportedAt.Before(out[j].ReportedAt)
	})
	return out, nil
}

// dispatch fires the severity-tiered responder signal in the background.
// The case transition never waits on the responder.
func (s *Service) dispatch(severity model.Severity, id uuid.UUID) {
	if s.responder == nil {
		return
	}
	tier := model.TierForSeverity(severity)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.responder.Notify(ctx, tier, id); err != nil {
			s.logger.Error("intervention: responder dispatch",
				"intervention_id", id,
				"tier", tier,
				"error", err,
			)
			return
		}
		if s.dispatched != nil {
			s.dispatched.Add(ctx, 1)
		}
		s.recordAudit(ctx, model.EventResponderDispatched, "engine", id, map[string]any{
			"tier": tier,
		})
	}()
}

func (s *Service) recordAudit(ctx context.Context, eventType model.EventType, actor string, id uuid.UUID, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, model.AuditEntry{
		EventType:    eventType,
		Actor:        actor,
		ResourceType: "intervention",
		ResourceID:   id.String(),
		Details:      details,
		Outcome:      "success",
	})
}

func (s *Service) publish(ctx context.Context, eventType model.EventType, iv model.CrisisIntervention) {
	if s.events == nil {
		return
	}
	event := model.CrisisEvent{
		Type:           eventType,
		UserID:         iv.UserID,
		InterventionID: &iv.ID,
		Severity:       iv.Severity,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("intervention: publish event", "type", eventType, "error", err)
	}
}
