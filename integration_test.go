//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/domain/invoice"
	bookingEvents "github.com/cleanmatch/service-booking/internal/events"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/repository"
)

func jobDate(now time.Time) time.Time {
	d := now.AddDate(0, 0, 3)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// TestPaymentSucceeded_ConfirmsBooking verifies that a payment.succeeded event
// on payment.events confirms a pending booking and notifies both participants.
func TestPaymentSucceeded_ConfirmsBooking(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	// No payment profile: the booking stays pending until the provider reports.
	seed := seedMarketplace(t, infra.DB, "", "acct_int")
	hostActor := application.Actor{UserID: seed.Host.UserID(), Role: auth.RoleHost}

	resp, err := stack.Service.CreateBooking(context.Background(), hostActor, application.CreateBookingRequest{
		ListingID: seed.ListingID,
		CleanerID: seed.Cleaner.ID(),
		Date:      jobDate(stack.Clock.Now()),
		StartTime: "09:00",
		EndTime:   "12:00",
	})
	require.NoError(t, err)
	bookingID := resp.BookingID()
	waitForBookingStatus(t, infra.DB, bookingID, "pending", 5*time.Second)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	evt := bookingEvents.PaymentSucceededEvent{
		BookingID:         bookingID,
		ProviderPaymentID: "pi_from_provider",
		Amount:            11500,
		Currency:          "EUR",
	}
	publishTestEvent(t, infra.KafkaBrokers, bookingEvents.TopicPaymentEvents,
		"service-payment", bookingEvents.PaymentSucceeded, evt)

	model := waitForBookingStatus(t, infra.DB, bookingID, "confirmed", 15*time.Second)
	assert.True(t, model.IsPaid)
	assert.Equal(t, "pi_from_provider", model.ProviderPaymentID)

	// Replaying the callback is harmless.
	publishTestEvent(t, infra.KafkaBrokers, bookingEvents.TopicPaymentEvents,
		"service-payment", bookingEvents.PaymentSucceeded, evt)

	ce := consumeOneEvent(t, infra.KafkaBrokers, bookingEvents.TopicNotificationEvents,
		"notification.payment_confirmed", 15*time.Second)
	var note bookingEvents.NotificationEvent
	require.NoError(t, ce.ParseData(&note))
	assert.Equal(t, bookingID, note.RelatedID)

	time.Sleep(2 * time.Second)
	var again repository.BookingModel
	require.NoError(t, infra.DB.Where("id = ?", bookingID).First(&again).Error)
	assert.Equal(t, model.Version, again.Version, "replayed callback must not write")
}

// TestLifecycle_PayoutAndRating drives a booking from request to payout against
// real Postgres and Redis, then rates the cleaner.
func TestLifecycle_PayoutAndRating(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra)
	defer stack.CleanupProducer()

	seed := seedMarketplace(t, infra.DB, "cus_int", "acct_int")
	ctx := context.Background()
	svc := stack.Service
	hostActor := application.Actor{UserID: seed.Host.UserID(), Role: auth.RoleHost}
	cleanerActor := application.Actor{UserID: seed.Cleaner.UserID(), Role: auth.RoleCleaner}
	adminActor := application.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}

	resp, err := svc.CreateBooking(ctx, hostActor, application.CreateBookingRequest{
		ListingID: seed.ListingID,
		CleanerID: seed.Cleaner.ID(),
		Date:      jobDate(stack.Clock.Now()),
		StartTime: "09:00",
		EndTime:   "12:00",
	})
	require.NoError(t, err)
	id := resp.BookingID()

	var listingRow repository.ListingModel
	require.NoError(t, infra.DB.Where("id = ?", seed.ListingID).First(&listingRow).Error)
	assert.Equal(t, "booked", listingRow.Status)

	_, err = svc.AcceptBooking(ctx, cleanerActor, id)
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, hostActor, id)
	require.NoError(t, err)
	_, err = svc.MarkArrived(ctx, cleanerActor, id, nil)
	require.NoError(t, err)
	_, err = svc.CompleteBooking(ctx, cleanerActor, id)
	require.NoError(t, err)

	_, err = svc.ReleasePayout(ctx, adminActor, id)
	require.Error(t, err, "review period still open")

	stack.Clock.Advance(7*24*time.Hour + time.Minute)
	_, err = svc.ReleasePayout(ctx, adminActor, id)
	require.NoError(t, err)

	model := waitForBookingStatus(t, infra.DB, id, "completed", 5*time.Second)
	assert.True(t, model.IsPayoutSent)
	assert.NotEmpty(t, model.ProviderTransferID)

	var cleanerRow repository.CleanerModel
	require.NoError(t, infra.DB.Where("id = ?", seed.Cleaner.ID()).First(&cleanerRow).Error)
	assert.Equal(t, 1, cleanerRow.CompletedJobs)
	assert.Equal(t, int64(10000), cleanerRow.TotalEarnings)

	var invoiceRow repository.InvoiceModel
	require.NoError(t, infra.DB.Where("booking_id = ?", id).First(&invoiceRow).Error)
	assert.Equal(t, string(invoice.StatusPaid), invoiceRow.Status)

	_, err = svc.RateBooking(ctx, hostActor, id, application.RateBookingRequest{Rating: 5, Comment: "spotless"})
	require.NoError(t, err)
	require.NoError(t, infra.DB.Where("id = ?", seed.Cleaner.ID()).First(&cleanerRow).Error)
	assert.Equal(t, 1, cleanerRow.RatingCount)
	assert.InDelta(t, 5.0, cleanerRow.RatingAverage, 0.001)
}
