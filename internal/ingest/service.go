package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk-backend/internal/agents"
	"github.com/orderdesk/orderdesk-backend/internal/assignment"
	"github.com/orderdesk/orderdesk-backend/internal/eligibility"
	"github.com/orderdesk/orderdesk-backend/internal/orders"
	"github.com/orderdesk/orderdesk-backend/internal/products"
	"github.com/orderdesk/orderdesk-backend/pkg/db"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	"github.com/orderdesk/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/orderdesk/orderdesk-backend/pkg/errors"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
	"github.com/orderdesk/orderdesk-backend/pkg/metrics"
	"github.com/orderdesk/orderdesk-backend/pkg/pubsub"
)

// Triggers record what started an assignment run.
const (
	TriggerWebhook = "webhook"
	TriggerSync    = "sync"
	TriggerSweep   = "sweep"
	TriggerManual  = "manual"
)

const (
	defaultRosterTimeout     = 5 * time.Second
	defaultConstraintTimeout = 5 * time.Second
	defaultMaxBatchSize      = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rosterStore interface {
	ListRoster(ctx context.Context, roles []enums.AgentRole) ([]models.Agent, error)
	TouchLastAssigned(ctx context.Context, id uuid.UUID, at time.Time) error
}

type productStore interface {
	FindByExternalIDs(ctx context.Context, externalIDs []string) (map[string]models.Product, error)
}

// EventPublisher emits assignment events.
type EventPublisher interface {
	Publish(ctx context.Context, evt pubsub.AssignmentEvent) (string, error)
}

// OrderResult is the per-order outcome of a run.
type OrderResult struct {
	OrderNumber string                  `json:"orderNumber"`
	OrderID     *uuid.UUID              `json:"orderId,omitempty"`
	Outcome     enums.AssignmentOutcome `json:"outcome"`
	Reason      enums.AssignmentReason  `json:"reason,omitempty"`
	Created     bool                    `json:"created"`
	Fallback    bool                    `json:"fallback"`
	AgentID     *uuid.UUID              `json:"agentId,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// BatchResult holds one OrderResult per input, in input order.
type BatchResult struct {
	Results []OrderResult                   `json:"results"`
	Summary map[enums.AssignmentOutcome]int `json:"summary"`
}

func (b *BatchResult) add(r OrderResult) {
	if b.Summary == nil {
		b.Summary = map[enums.AssignmentOutcome]int{}
	}
	b.Results = append(b.Results, r)
	b.Summary[r.Outcome]++
}

// Service is the idempotent boundary around the assignment engine.
type Service interface {
	// IngestBatch creates unknown orders and assigns every unowned one. A
	// roster failure aborts the whole batch before anything is written.
	IngestBatch(ctx context.Context, trigger string, payloads []OrderPayload) (BatchResult, error)
	// AssignOrder assigns one stored order if it has no owner yet.
	AssignOrder(ctx context.Context, trigger string, orderID uuid.UUID) (OrderResult, error)
	// AssignUnassigned retries up to limit open orders that have no owner.
	AssignUnassigned(ctx context.Context, trigger string, limit int) (BatchResult, error)
}

// ServiceParams wire the orchestrator. Publisher, Guard and Metrics are optional.
type ServiceParams struct {
	Logger            *logger.Logger
	Tx                txRunner
	Orders            orders.Repository
	Agents            rosterStore
	Products          productStore
	Engine            *assignment.Engine
	Metrics           *metrics.AssignmentMetrics
	Publisher         EventPublisher
	Guard             Guard
	Roles             []enums.AgentRole
	RosterTimeout     time.Duration
	ConstraintTimeout time.Duration
	MaxBatchSize      int
	Now               func() time.Time
}

type service struct {
	logg              *logger.Logger
	tx                txRunner
	orders            orders.Repository
	agents            rosterStore
	products          productStore
	engine            *assignment.Engine
	metrics           *metrics.AssignmentMetrics
	publisher         EventPublisher
	guard             Guard
	roles             []enums.AgentRole
	rosterTimeout     time.Duration
	constraintTimeout time.Duration
	maxBatchSize      int
	now               func() time.Time
}

// NewService validates the params and builds the orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Agents == nil {
		return nil, fmt.Errorf("roster store required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product store required")
	}
	if len(params.Roles) == 0 {
		return nil, fmt.Errorf("assignable roles required")
	}
	engine := params.Engine
	if engine == nil {
		engine = assignment.NewEngine(params.Logger, params.Metrics)
	}
	rosterTimeout := params.RosterTimeout
	if rosterTimeout <= 0 {
		rosterTimeout = defaultRosterTimeout
	}
	constraintTimeout := params.ConstraintTimeout
	if constraintTimeout <= 0 {
		constraintTimeout = defaultConstraintTimeout
	}
	maxBatch := params.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:              params.Logger,
		tx:                params.Tx,
		orders:            params.Orders,
		agents:            params.Agents,
		products:          params.Products,
		engine:            engine,
		metrics:           params.Metrics,
		publisher:         params.Publisher,
		guard:             params.Guard,
		roles:             params.Roles,
		rosterTimeout:     rosterTimeout,
		constraintTimeout: constraintTimeout,
		maxBatchSize:      maxBatch,
		now:               now,
	}, nil
}

// roster is the per-run snapshot. Loads and LastAssignedAt are bumped locally
// after every assignment so a batch spreads work without re-reading.
type roster struct {
	agents []eligibility.Agent
	loads  assignment.Loads
}

func (r *roster) bump(agentID uuid.UUID, at time.Time) {
	r.loads[agentID]++
	for i := range r.agents {
		if r.agents[i].ID == agentID {
			ts := at
			r.agents[i].LastAssignedAt = &ts
			return
		}
	}
}

func (s *service) loadRoster(ctx context.Context) (*roster, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.rosterTimeout)
	defer cancel()

	rows, err := s.agents.ListRoster(fetchCtx, s.roles)
	if err != nil {
		return nil, pkgerrors.WrapDependency(err, "load agent roster")
	}
	agentsOnRoster := agents.ToRoster(rows, s.roles)
	ids := make([]uuid.UUID, 0, len(agentsOnRoster))
	for _, a := range agentsOnRoster {
		ids = append(ids, a.ID)
	}
	loads, err := s.orders.CountOpenByAgent(fetchCtx, ids)
	if err != nil {
		return nil, pkgerrors.WrapDependency(err, "load agent workload")
	}
	return &roster{agents: agentsOnRoster, loads: assignment.Loads(loads)}, nil
}

func (s *service) IngestBatch(ctx context.Context, trigger string, payloads []OrderPayload) (BatchResult, error) {
	if len(payloads) == 0 {
		return BatchResult{Results: []OrderResult{}, Summary: map[enums.AssignmentOutcome]int{}}, nil
	}
	if len(payloads) > s.maxBatchSize {
		return BatchResult{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("batch exceeds %d orders", s.maxBatchSize))
	}
	start := s.now()
	ctx = s.logg.WithFields(ctx, map[string]any{"trigger": trigger, "batch_size": len(payloads)})

	snapshot, err := s.loadRoster(ctx)
	if err != nil {
		s.logg.Error(ctx, "roster unavailable; batch deferred", err)
		return BatchResult{}, err
	}

	var out BatchResult
	for i := range payloads {
		out.add(s.ingestOne(ctx, trigger, payloads[i], snapshot))
	}
	s.metrics.ObserveBatch(trigger, s.now().Sub(start))
	s.logg.Info(s.logg.WithField(ctx, "summary", out.Summary), "order batch processed")
	return out, nil
}

func (s *service) ingestOne(ctx context.Context, trigger string, payload OrderPayload, snapshot *roster) OrderResult {
	if err := payload.Validate(); err != nil {
		return s.finish(ctx, OrderResult{OrderNumber: payload.OrderNumber, Outcome: enums.AssignmentOutcomeInvalid, Error: err.Error()})
	}
	ctx = s.logg.WithOrderNumber(ctx, payload.OrderNumber)
	if err := ctx.Err(); err != nil {
		return s.finish(ctx, failed(payload.OrderNumber, nil, err))
	}

	release, ok := s.acquire(ctx, payload.OrderNumber)
	if !ok {
		return s.finish(ctx, OrderResult{
			OrderNumber: payload.OrderNumber,
			Outcome:     enums.AssignmentOutcomeSkipped,
			Reason:      enums.AssignmentReasonInFlight,
		})
	}
	defer release()

	order, created, err := s.findOrCreate(ctx, trigger, payload)
	if err != nil {
		s.logg.Error(ctx, "failed to store order", err)
		return s.finish(ctx, failed(payload.OrderNumber, nil, err))
	}

	res := s.assign(ctx, trigger, order, snapshot)
	res.Created = created
	if created && res.Reason == enums.AssignmentReasonClosed {
		res.Outcome = enums.AssignmentOutcomeCreated
		res.Reason = ""
	}
	return s.finish(ctx, res)
}

func (s *service) findOrCreate(ctx context.Context, trigger string, payload OrderPayload) (*models.Order, bool, error) {
	existing, err := s.orders.FindByOrderNumber(ctx, payload.OrderNumber)
	if err == nil {
		return existing, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, pkgerrors.WrapDependency(err, "lookup order")
	}

	order := payload.toModel(trigger, s.now())
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).Create(ctx, order)
	})
	if err == nil {
		return order, true, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, false, pkgerrors.WrapDependency(err, "create order")
	}
	// A concurrent delivery created it first.
	existing, err = s.orders.FindByOrderNumber(ctx, payload.OrderNumber)
	if err != nil {
		return nil, false, pkgerrors.WrapDependency(err, "reload order")
	}
	return existing, false, nil
}

func (s *service) AssignOrder(ctx context.Context, trigger string, orderID uuid.UUID) (OrderResult, error) {
	if orderID == uuid.Nil {
		return OrderResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return OrderResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return OrderResult{}, pkgerrors.WrapDependency(err, "load order")
	}
	ctx = s.logg.WithOrderNumber(s.logg.WithField(ctx, "trigger", trigger), order.OrderNumber)
	if order.IsAssigned() {
		return s.finish(ctx, existingResult(order)), nil
	}

	snapshot, err := s.loadRoster(ctx)
	if err != nil {
		return OrderResult{}, err
	}

	release, ok := s.acquire(ctx, order.OrderNumber)
	if !ok {
		id := order.ID
		return s.finish(ctx, OrderResult{
			OrderNumber: order.OrderNumber,
			OrderID:     &id,
			Outcome:     enums.AssignmentOutcomeSkipped,
			Reason:      enums.AssignmentReasonInFlight,
		}), nil
	}
	defer release()
	return s.finish(ctx, s.assign(ctx, trigger, order, snapshot)), nil
}

func (s *service) AssignUnassigned(ctx context.Context, trigger string, limit int) (BatchResult, error) {
	pending, err := s.orders.ListUnassigned(ctx, limit)
	if err != nil {
		return BatchResult{}, pkgerrors.WrapDependency(err, "list unassigned orders")
	}
	out := BatchResult{Results: []OrderResult{}, Summary: map[enums.AssignmentOutcome]int{}}
	if len(pending) == 0 {
		return out, nil
	}
	start := s.now()
	ctx = s.logg.WithFields(ctx, map[string]any{"trigger": trigger, "batch_size": len(pending)})
	snapshot, err := s.loadRoster(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	for i := range pending {
		order := &pending[i]
		orderCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
		if err := ctx.Err(); err != nil {
			out.add(s.finish(orderCtx, failed(order.OrderNumber, &order.ID, err)))
			continue
		}
		release, ok := s.acquire(orderCtx, order.OrderNumber)
		if !ok {
			id := order.ID
			out.add(s.finish(orderCtx, OrderResult{
				OrderNumber: order.OrderNumber,
				OrderID:     &id,
				Outcome:     enums.AssignmentOutcomeSkipped,
				Reason:      enums.AssignmentReasonInFlight,
			}))
			continue
		}
		out.add(s.finish(orderCtx, s.assign(orderCtx, trigger, order, snapshot)))
		release()
	}
	s.metrics.ObserveBatch(trigger, s.now().Sub(start))
	return out, nil
}

// assign runs the engine for a stored order and persists the decision.
func (s *service) assign(ctx context.Context, trigger string, order *models.Order, snapshot *roster) OrderResult {
	orderID := order.ID
	if order.IsAssigned() {
		return existingResult(order)
	}
	if !order.Status.IsOpen() {
		return OrderResult{
			OrderNumber: order.OrderNumber,
			OrderID:     &orderID,
			Outcome:     enums.AssignmentOutcomeSkipped,
			Reason:      enums.AssignmentReasonClosed,
		}
	}

	lines, err := s.lineConstraints(ctx, order.Lines)
	if err != nil {
		s.logg.Error(ctx, "product constraints unavailable", err)
		return failed(order.OrderNumber, &orderID, err)
	}

	decision := s.engine.Assign(ctx, assignment.Order{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		AgentID:     order.AgentID,
		Lines:       lines,
	}, snapshot.agents, snapshot.loads)

	if decision.Unassignable {
		if s.alreadyUnassignable(ctx, order.ID) {
			s.logg.Info(ctx, "order still unassignable; audit entry unchanged")
		} else {
			s.audit(ctx, &models.OrderAssignment{
				OrderID: order.ID,
				Reason:  decision.Reason,
				Trigger: trigger,
			})
			s.publish(ctx, pubsub.EventOrderUnassignable, trigger, order, decision)
		}
		return OrderResult{
			OrderNumber: order.OrderNumber,
			OrderID:     &orderID,
			Outcome:     enums.AssignmentOutcomeUnassignable,
			Reason:      decision.Reason,
		}
	}

	now := s.now().UTC()
	agentID := decision.AgentID
	var won bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		var err error
		won, err = repo.AssignIfUnassigned(ctx, orders.AssignParams{
			OrderID:    order.ID,
			AgentID:    agentID,
			AssignedAt: now,
			Fallback:   decision.Fallback,
		})
		if err != nil || !won {
			return err
		}
		return repo.InsertAssignment(ctx, &models.OrderAssignment{
			OrderID:        order.ID,
			AgentID:        &agentID,
			Reason:         decision.Reason,
			Fallback:       decision.Fallback,
			CandidateCount: decision.CandidateCount,
			Trigger:        trigger,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "failed to persist assignment", err)
		return failed(order.OrderNumber, &orderID, pkgerrors.WrapDependency(err, "persist assignment"))
	}
	if !won {
		return s.lostRace(ctx, order)
	}

	if err := s.agents.TouchLastAssigned(ctx, agentID, now); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to record agent assignment time")
	}
	snapshot.bump(agentID, now)
	order.AgentID = &agentID
	order.AssignedAt = &now
	order.AssignmentFallback = decision.Fallback

	eventType := pubsub.EventOrderAssigned
	if decision.Fallback {
		eventType = pubsub.EventOrderAssignmentFallback
	}
	s.publish(ctx, eventType, trigger, order, decision)
	s.logg.Info(s.logg.WithAgentID(ctx, agentID.String()), "order assigned")

	return OrderResult{
		OrderNumber: order.OrderNumber,
		OrderID:     &orderID,
		Outcome:     enums.AssignmentOutcomeAssigned,
		Reason:      decision.Reason,
		Fallback:    decision.Fallback,
		AgentID:     &agentID,
	}
}

func (s *service) lostRace(ctx context.Context, order *models.Order) OrderResult {
	orderID := order.ID
	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return failed(order.OrderNumber, &orderID, pkgerrors.WrapDependency(err, "reload order"))
	}
	s.logg.Info(ctx, "order assigned concurrently; keeping existing owner")
	return existingResult(current)
}

func (s *service) lineConstraints(ctx context.Context, lines []models.OrderLine) ([]eligibility.ProductConstraint, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.constraintTimeout)
	defer cancel()

	known, err := s.products.FindByExternalIDs(fetchCtx, products.ExternalIDs(lines))
	if err != nil {
		return nil, pkgerrors.WrapDependency(err, "load product constraints")
	}
	out := make([]eligibility.ProductConstraint, 0, len(lines))
	for _, line := range lines {
		out = append(out, products.LineConstraint(line, known))
	}
	return out, nil
}

// acquire takes the in-flight guard. Guard errors are logged and processing
// continues; the conditional write still prevents double assignment.
func (s *service) acquire(ctx context.Context, orderNumber string) (func(), bool) {
	noop := func() {}
	if s.guard == nil {
		return noop, true
	}
	release, ok, err := s.guard.Acquire(ctx, orderNumber)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "in-flight guard unavailable; continuing without it")
		return noop, true
	}
	if !ok {
		s.logg.Info(ctx, "order already in flight; skipping")
		return noop, false
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to release in-flight guard")
		}
	}, true
}

// alreadyUnassignable reports whether the newest audit entry for the order
// already records it as unassignable. Lookup errors count as false.
func (s *service) alreadyUnassignable(ctx context.Context, orderID uuid.UUID) bool {
	latest, err := s.orders.LatestAssignment(ctx, orderID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to read latest assignment audit entry")
		return false
	}
	return latest != nil && latest.Reason == enums.AssignmentReasonUnassignable
}

func (s *service) audit(ctx context.Context, entry *models.OrderAssignment) {
	if err := s.orders.InsertAssignment(ctx, entry); err != nil {
		s.logg.Error(ctx, "failed to write assignment audit entry", err)
	}
}

func (s *service) publish(ctx context.Context, eventType pubsub.EventType, trigger string, order *models.Order, decision assignment.Decision) {
	if s.publisher == nil {
		return
	}
	evt := pubsub.AssignmentEvent{
		Type:           eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Reason:         decision.Reason.String(),
		Fallback:       decision.Fallback,
		CandidateCount: decision.CandidateCount,
		Trigger:        trigger,
		OccurredAt:     s.now().UTC(),
	}
	if !decision.Unassignable {
		agentID := decision.AgentID
		evt.AgentID = &agentID
	}
	if _, err := s.publisher.Publish(ctx, evt); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to publish assignment event")
	}
}

func (s *service) finish(ctx context.Context, res OrderResult) OrderResult {
	s.metrics.IncOutcome(res.Outcome.String(), res.Reason.String())
	if res.Outcome == enums.AssignmentOutcomeInvalid {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"order_number": res.OrderNumber, "error": res.Error}), "order payload rejected")
	}
	return res
}

func existingResult(order *models.Order) OrderResult {
	orderID := order.ID
	res := OrderResult{
		OrderNumber: order.OrderNumber,
		OrderID:     &orderID,
		Outcome:     enums.AssignmentOutcomeSkipped,
		Reason:      enums.AssignmentReasonExisting,
		Fallback:    order.AssignmentFallback,
	}
	if order.AgentID != nil {
		agentID := *order.AgentID
		res.AgentID = &agentID
	}
	return res
}

func failed(orderNumber string, orderID *uuid.UUID, err error) OrderResult {
	return OrderResult{
		OrderNumber: orderNumber,
		OrderID:     orderID,
		Outcome:     enums.AssignmentOutcomeFailed,
		Error:       err.Error(),
	}
}
