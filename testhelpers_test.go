//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/domain/profile"
	bookingEvents "github.com/cleanmatch/service-booking/internal/events"
	"github.com/cleanmatch/service-booking/internal/gateway"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/kafka"
	"github.com/cleanmatch/service-booking/internal/platform/lock"
	"github.com/cleanmatch/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Consumer        *bookingEvents.PaymentEventConsumer
	Clock           *testClock
	CleanupProducer func()
}

// testClock lets a test move the service's notion of now.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seeded holds the rows every scenario starts from.
type seeded struct {
	Host      *profile.Host
	Cleaner   *profile.Cleaner
	ListingID uuid.UUID
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers and migrates the schema.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(pgConfig.DSN()), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(pgConfig.DatabaseURL(), "migrations", zap.NewNop()))

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, bookingEvents.TopicNotificationEvents, bookingEvents.TopicPaymentEvents)

	cleanup := func() {
		_ = redisClient.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		Redis:        redisClient,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// fakeProvider answers every payment call with a fresh id.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := map[string]string{"/v1/payments": "pi_", "/v1/refunds": "re_", "/v1/transfers": "tr_"}[r.URL.Path]
		_ = json.NewEncoder(w).Encode(map[string]string{"id": prefix + uuid.NewString()[:8]})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, infra *testInfra) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(infra.DB)
	profileRepo := repository.NewGormProfileRepository(infra.DB)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)

	ratings, err := application.NewRatingAggregator(application.RatingStrategyIncremental, bookingRepo, profileRepo)
	require.NoError(t, err)

	clock := &testClock{now: time.Now().UTC()}
	bookingSvc := application.NewBookingService(application.BookingServiceDeps{
		Bookings: bookingRepo,
		Listings: repository.NewGormListingRepository(infra.DB),
		Profiles: profileRepo,
		Invoices: repository.NewGormInvoiceRepository(infra.DB),
		Photos:   repository.NewGormPhotoRepository(infra.DB),
		Ledger:   repository.NewGormAvailabilityLedger(infra.DB),
		Payments: gateway.NewPaymentClient(gateway.Config{BaseURL: fakeProvider(t).URL, APIKey: "sk_test"}, logger),
		Notifier: bookingEvents.NewNotificationPublisher(producer, logger),
		Ratings:  ratings,
		Tx:       database.NewGormTransactor(infra.DB),
		Locker:   lock.NewRedisLocker(infra.Redis),
		Logger:   logger,
		Clock:    clock.Now,
	})

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(infra.KafkaBrokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Service:         bookingSvc,
		Consumer:        consumer,
		Clock:           clock,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedMarketplace inserts a published listing, a host and a cleaner whose
// application to the listing was accepted.
func seedMarketplace(t *testing.T, db *gorm.DB, hostPaymentRef, cleanerPayoutRef string) seeded {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	repo := repository.NewGormProfileRepository(db)

	host, err := profile.NewHost(uuid.New(), "Integration Host", profile.Contact{Email: "host@example.com", Phone: "+3100"}, now)
	require.NoError(t, err)
	if hostPaymentRef != "" {
		host.UpdateDetails("", nil, hostPaymentRef, now)
	}
	require.NoError(t, repo.SaveHost(ctx, host))

	cleaner, err := profile.NewCleaner(uuid.New(), "Integration Cleaner", profile.Contact{Email: "cleaner@example.com", Phone: "+3200"}, now)
	require.NoError(t, err)
	if cleanerPayoutRef != "" {
		cleaner.UpdateDetails("", nil, cleanerPayoutRef, now)
	}
	require.NoError(t, repo.SaveCleaner(ctx, cleaner))

	services, _ := json.Marshal([]string{"Kitchen", "Bathroom", "Floors"})
	listingID := uuid.New()
	require.NoError(t, db.Create(&repository.ListingModel{
		ID:          listingID,
		HostID:      host.ID(),
		Title:       "Canal-side apartment",
		Status:      "published",
		Services:    services,
		BaseAmount:  10000,
		Commission:  1500,
		TotalAmount: 11500,
		Currency:    "EUR",
	}).Error, "failed to seed listing")
	require.NoError(t, db.Create(&repository.ListingApplicationModel{
		ID:        uuid.New(),
		ListingID: listingID,
		CleanerID: cleaner.ID(),
		Status:    "accepted",
	}).Error, "failed to seed application")

	return seeded{Host: host, Cleaner: cleaner, ListingID: listingID}
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
