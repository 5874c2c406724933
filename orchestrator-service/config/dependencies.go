package config

import (
	"context"
	"fmt"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/application"
	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/orchestrator-service/handlers"
	"github.com/clearcart/checkout-system/orchestrator-service/infrastructure"
	"github.com/clearcart/checkout-system/shared/events"
	sharedinfra "github.com/clearcart/checkout-system/shared/infrastructure"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Replay sweep tuning. The minimum age keeps the sweeper off entries whose
// original publish may still be in flight.
const (
	replayInterval  = 30 * time.Second
	replayMinAge    = time.Minute
	replayBatchSize = 100
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	SagaRepository *infrastructure.PostgresSagaRepository
	EventStore     *sharedinfra.PostgresEventStore

	// Scheduling
	Scheduler domain.TimeoutScheduler

	// Use Cases
	StartCheckout           *application.StartCheckout
	ProcessPaymentSuccess   *application.ProcessPaymentSuccess
	ProcessPaymentFailure   *application.ProcessPaymentFailure
	ProcessPaymentTimeout   *application.ProcessPaymentTimeout
	ProcessProductReserved  *application.ProcessProductReserved
	ProcessReservationFault *application.ProcessReservationFault
	ProcessBookingResult    *application.ProcessDeliveryBookingResult
	ProcessDeliverySuccess  *application.ProcessDeliverySuccess
	ProcessRefundResult     *application.ProcessRefundResult
	GetOrderStatus          *application.GetOrderStatus
	ProcessStatusRequest    *application.ProcessStatusRequest

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	CheckoutEventHandlers *handlers.CheckoutEventHandlers

	// Infrastructure
	EventPublisher  events.Publisher
	EventReplayer   *sharedinfra.EventReplayer
	SNSPublisher    *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry *telemetry.Telemetry

	timerScheduler    *infrastructure.TimerScheduler
	telemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry
	tel, telShutdown, err := telemetry.InitTelemetry(ctx, telemetry.NewConfigForService(
		config.ServiceName,
		"1.0.0",
		config.Telemetry.OTLPEndpoint,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	deps.Telemetry = tel
	deps.telemetryShutdown = telShutdown

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	snsPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.SNSPublisher = snsPublisher

	// Outgoing events go through the audit stream before SNS; the replayer
	// republishes entries whose publish never reached the bus, straight to
	// SNS so they are not recorded twice
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)
	deps.EventPublisher = sharedinfra.NewRecordingPublisher(deps.EventStore, snsPublisher)
	deps.EventReplayer = sharedinfra.NewEventReplayer(deps.EventStore, snsPublisher, replayInterval, replayMinAge, replayBatchSize)

	// Events for the same order must be handled in arrival order, so the
	// subscriber shards its workers by order
	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(
		config.AWS.SQSQueueURL,
		sharedinfra.WithPartitionKeyFunc(handlers.PartitionKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize timeout scheduler
	switch config.Saga.SchedulerBackend {
	case "memory":
		deps.timerScheduler = infrastructure.NewTimerScheduler()
		deps.Scheduler = deps.timerScheduler
	default:
		scheduler, err := infrastructure.NewSQSDelaySchedulerAdapter(config.AWS.SQSQueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create delay scheduler: %w", err)
		}
		deps.Scheduler = scheduler
	}

	// Initialize repositories
	deps.SagaRepository = infrastructure.NewPostgresSagaRepository(db)

	// Initialize use cases
	coordinator := application.NewDeliveryBookingCoordinator(deps.Scheduler, config.Saga.DeliveryTimeout())
	deps.StartCheckout = application.NewStartCheckout(deps.SagaRepository, deps.Scheduler, deps.EventPublisher, config.Saga.PaymentTimeout())
	deps.ProcessPaymentSuccess = application.NewProcessPaymentSuccess(deps.SagaRepository, deps.Scheduler, deps.EventPublisher)
	deps.ProcessPaymentFailure = application.NewProcessPaymentFailure(deps.SagaRepository, deps.Scheduler, deps.EventPublisher)
	deps.ProcessPaymentTimeout = application.NewProcessPaymentTimeout(deps.SagaRepository, deps.EventPublisher)
	deps.ProcessProductReserved = application.NewProcessProductReserved(deps.SagaRepository, coordinator, deps.EventPublisher)
	deps.ProcessReservationFault = application.NewProcessReservationFault(deps.SagaRepository, deps.EventPublisher)
	deps.ProcessBookingResult = application.NewProcessDeliveryBookingResult(deps.SagaRepository, deps.EventPublisher)
	deps.ProcessDeliverySuccess = application.NewProcessDeliverySuccess(deps.SagaRepository, deps.EventPublisher)
	deps.ProcessRefundResult = application.NewProcessRefundResult(deps.SagaRepository, deps.EventPublisher)
	deps.GetOrderStatus = application.NewGetOrderStatus(deps.SagaRepository)
	deps.ProcessStatusRequest = application.NewProcessStatusRequest(deps.GetOrderStatus, deps.EventPublisher)

	// Initialize handlers
	deps.OrderHandlers = handlers.NewOrderHandlers(deps.GetOrderStatus)
	deps.CheckoutEventHandlers = handlers.NewCheckoutEventHandlers(
		deps.StartCheckout,
		deps.ProcessPaymentSuccess,
		deps.ProcessPaymentFailure,
		deps.ProcessPaymentTimeout,
		deps.ProcessProductReserved,
		deps.ProcessReservationFault,
		deps.ProcessBookingResult,
		deps.ProcessDeliverySuccess,
		deps.ProcessRefundResult,
		deps.ProcessStatusRequest,
	)

	// The in-process scheduler delivers fired timeouts through the same
	// handler the bus feeds; it can only be attached once the handler exists
	if deps.timerScheduler != nil {
		deps.timerScheduler.SetHandler(deps.CheckoutEventHandlers)
	}

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.SNSPublisher != nil {
		if err := d.SNSPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.telemetryShutdown != nil {
		d.telemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
