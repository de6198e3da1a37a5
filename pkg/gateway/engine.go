// Package gateway resolves parallel, exclusive and inclusive gateways of running workflows.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-gateway/pkg/log"
	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/otelhelper"
	"github.com/dukex/operion-gateway/pkg/persistence"
	"github.com/dukex/operion-gateway/pkg/queue"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// gatewayIDNamespace derives gateway ids from delivery ids, so a redelivered message
// finds the record its first attempt created.
var gatewayIDNamespace = uuid.MustParse("6f1c6a4e-1d8e-4f53-9a43-4b1f0c8e2d71")

// Producer publishes continuation messages.
type Producer interface {
	Produce(ctx context.Context, payload any, opts ...queue.ProduceOption) (string, error)
}

// Notifier delivers error notifications to workflow subscribers.
type Notifier interface {
	NotifyWorkflowError(ctx context.Context, notification models.ErrorNotification) error
}

type Dependencies struct {
	Store       persistence.GatewayStore
	Context     persistence.ContextProvider
	Evaluator   Evaluator
	Producer    Producer
	Notifier    Notifier
	Logger      *slog.Logger
	Tracer      trace.Tracer
	ServiceName string
}

// Engine consumes gateway evaluation requests.
type Engine struct {
	store       persistence.GatewayStore
	context     persistence.ContextProvider
	evaluator   Evaluator
	producer    Producer
	notifier    Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
	serviceName string
	validate    *validator.Validate
}

func NewEngine(deps Dependencies) *Engine {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Engine{
		store:       deps.Store,
		context:     deps.Context,
		evaluator:   deps.Evaluator,
		producer:    deps.Producer,
		notifier:    deps.Notifier,
		logger:      deps.Logger.With("module", "gateway"),
		tracer:      tracer,
		serviceName: deps.ServiceName,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Decision is the outcome of a gateway evaluation before it is persisted.
type Decision struct {
	Template    *models.GatewayTemplate
	GatewayType *models.GatewayType
	Data        models.GatewayData
}

// Handle is the queue handler. Domain failures are recorded and reported as handled;
// only a failed publish returns an error so the delivery is retried.
func (e *Engine) Handle(ctx context.Context, payload []byte) error {
	logger := log.FromContext(ctx, e.logger)

	msg, err := e.decode(payload)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping gateway message", "error", err)

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "gateway.evaluate",
		attribute.String(otelhelper.WorkflowIDKey, msg.WorkflowID),
		attribute.Int64(otelhelper.GatewayTemplateIDKey, msg.GatewayTemplateID),
		attribute.Int64(otelhelper.WorkflowTemplateIDKey, msg.WorkflowTemplateID),
		attribute.String(otelhelper.DebugIDKey, msg.DebugID),
	)
	defer span.End()

	logger = logger.With(
		"workflow_id", msg.WorkflowID,
		"gateway_template_id", msg.GatewayTemplateID,
	)
	ctx = log.WithLogger(ctx, logger)

	decision, err := e.Evaluate(ctx, msg)

	if msg.IsDebug() {
		e.recordDebug(ctx, msg, payload, decision, err)

		return nil
	}

	if err != nil {
		otelhelper.SetError(span, err)
		e.fail(ctx, msg, payload, err)

		return nil
	}

	gateway, err := e.persist(ctx, msg, decision)
	if err != nil {
		otelhelper.SetError(span, err)
		e.fail(ctx, msg, payload, err)

		return nil
	}

	span.SetAttributes(attribute.String(otelhelper.GatewayIDKey, gateway.ID))

	_, err = e.producer.Produce(ctx, models.OutboundMessage{
		WorkflowID: gateway.WorkflowID,
		GatewayID:  gateway.ID,
	})
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to publish gateway result", "gateway_id", gateway.ID, "error", err)

		return fmt.Errorf("failed to publish gateway %s: %w", gateway.ID, err)
	}

	logger.InfoContext(ctx, "Gateway evaluated", "gateway_id", gateway.ID)

	return nil
}

func (e *Engine) decode(payload []byte) (*models.InboundMessage, error) {
	var msg models.InboundMessage

	err := json.Unmarshal(payload, &msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	err = e.validate.Struct(&msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	return &msg, nil
}

// Evaluate loads the gateway and the workflow context and runs the decision algorithm.
func (e *Engine) Evaluate(ctx context.Context, msg *models.InboundMessage) (*Decision, error) {
	sequenceIDs, err := e.sequenceIDs(ctx, msg)
	if err != nil {
		return nil, err
	}

	template, err := e.store.GatewayTemplateByID(ctx, msg.GatewayTemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway template %d: %w", msg.GatewayTemplateID, err)
	}

	gatewayType, err := e.store.GatewayTypeByID(ctx, template.GatewayTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway type %d: %w", template.GatewayTypeID, err)
	}

	schema, err := template.ParseSchema()
	if err != nil {
		return nil, fmt.Errorf("gateway template %d: %w", template.ID, err)
	}

	var (
		documents []*models.Document
		events    []*models.Event
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error

		documents, err = e.context.DocumentsByWorkflowID(groupCtx, msg.WorkflowID, schema.IsCurrentOnly)
		if err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		var err error

		events, err = e.context.EventsByWorkflowID(groupCtx, msg.WorkflowID)
		if err != nil {
			return fmt.Errorf("failed to load events: %w", err)
		}

		return nil
	})

	err = group.Wait()
	if err != nil {
		return nil, err
	}

	data, err := Decide(ctx, e.evaluator, Input{
		GatewayTemplateID:  template.ID,
		WorkflowTemplateID: msg.WorkflowTemplateID,
		GatewayType:        gatewayType.Name,
		Schema:             schema,
		SequenceIDs:        sequenceIDs,
		Documents:          documents,
		Events:             events,
	})
	if err != nil {
		return nil, err
	}

	return &Decision{
		Template:    template,
		GatewayType: gatewayType,
		Data:        data,
	}, nil
}

// sequenceIDs returns the message sequence ids, or the input of the latest gateway of the
// same template in the workflow when the message has none.
func (e *Engine) sequenceIDs(ctx context.Context, msg *models.InboundMessage) ([]string, error) {
	if msg.SequenceIDs != nil {
		return msg.SequenceIDs, nil
	}

	latest, err := e.context.LatestGatewayInWorkflow(ctx, msg.GatewayTemplateID, msg.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest gateway: %w", err)
	}

	if latest == nil || latest.Data.SequenceIDs == nil {
		return []string{}, nil
	}

	return latest.Data.SequenceIDs, nil
}

func (e *Engine) persist(ctx context.Context, msg *models.InboundMessage, decision *Decision) (*models.Gateway, error) {
	version := 0

	history, err := e.context.LastWorkflowHistory(ctx, msg.WorkflowTemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow history: %w", err)
	}

	if history != nil {
		version = history.Version
	}

	gateway := &models.Gateway{
		ID:                gatewayID(ctx),
		GatewayTemplateID: decision.Template.ID,
		GatewayTypeID:     decision.GatewayType.ID,
		WorkflowID:        msg.WorkflowID,
		Name:              decision.Template.Name,
		Data:              decision.Data,
		Version:           version,
		CreatedBy:         e.serviceName,
		UpdatedBy:         e.serviceName,
	}

	err = e.store.CreateGateway(ctx, gateway)
	if errors.Is(err, persistence.ErrGatewayAlreadyExists) && gateway.ID != "" {
		log.FromContext(ctx, e.logger).InfoContext(ctx, "Gateway already recorded for this delivery", "gateway_id", gateway.ID)

		return e.store.GatewayByID(ctx, gateway.ID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return gateway, nil
}

// gatewayID is derived from the delivery id when there is one; otherwise the store assigns it.
func gatewayID(ctx context.Context) string {
	messageID := queue.MessageID(ctx)
	if messageID == "" {
		return ""
	}

	return uuid.NewSHA1(gatewayIDNamespace, []byte(messageID)).String()
}
