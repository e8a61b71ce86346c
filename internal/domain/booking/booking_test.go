package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	bk, err := NewBooking(NewBookingParams{
		ListingID:     uuid.New(),
		HostID:        uuid.New(),
		HostUserID:    uuid.New(),
		CleanerID:     uuid.New(),
		CleanerUserID: uuid.New(),
		Schedule:      Schedule{Date: t0.AddDate(0, 0, 3), StartTime: "09:00", EndTime: "12:00"},
		Services:      []string{"kitchen", "bathroom", "bedroom"},
		Amount:        115,
		PlatformFee:   15,
		CleanerPayout: 100,
		Currency:      domain.CurrencyEUR,
	}, t0)
	require.NoError(t, err)
	return bk
}

func completedBooking(t *testing.T, at time.Time) *Booking {
	t.Helper()
	bk := newTestBooking(t)
	require.NoError(t, bk.ConfirmPayment("pi_1", at))
	require.NoError(t, bk.MarkArrived(nil, at))
	require.NoError(t, bk.Complete(PartyCleaner, at))
	return bk
}

func TestNewBooking(t *testing.T) {
	bk := newTestBooking(t)

	assert.Equal(t, StatusPending, bk.Status())
	assert.Equal(t, int64(115), bk.Payment().Amount)
	assert.Equal(t, int64(15), bk.Payment().PlatformFee)
	assert.Equal(t, int64(100), bk.Payment().CleanerPayout)
	assert.Len(t, bk.Checklist(), 3)
	assert.Equal(t, "kitchen", bk.Checklist()[0].Name)
	assert.Equal(t, "bedroom", bk.Checklist()[2].Name)
	assert.Regexp(t, `^CL-[A-Z0-9]{6}$`, bk.BookingNumber())
}

func TestNewBookingValidation(t *testing.T) {
	base := NewBookingParams{
		ListingID: uuid.New(), HostID: uuid.New(), HostUserID: uuid.New(),
		CleanerID: uuid.New(), CleanerUserID: uuid.New(),
		Schedule: Schedule{Date: t0, StartTime: "09:00", EndTime: "12:00"},
		Services: []string{"kitchen"}, Amount: 115, PlatformFee: 15, CleanerPayout: 100, Currency: "EUR",
	}

	cases := map[string]func(p *NewBookingParams){
		"mismatched split": func(p *NewBookingParams) { p.CleanerPayout = 99 },
		"no services":      func(p *NewBookingParams) { p.Services = nil },
		"bad time":         func(p *NewBookingParams) { p.Schedule.StartTime = "9am" },
		"end before start": func(p *NewBookingParams) { p.Schedule.EndTime = "08:00" },
		"missing cleaner":  func(p *NewBookingParams) { p.CleanerID = uuid.Nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			_, err := NewBooking(p, t0)
			var ve *domain.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestNoDirectJumpToCompleted(t *testing.T) {
	bk := newTestBooking(t)
	assert.Error(t, bk.Complete(PartyAdmin, t0))
	_, err := bk.UpdateTasks(nil, t0)
	assert.Error(t, err)
	assert.Equal(t, StatusPending, bk.Status())

	require.NoError(t, bk.ConfirmPayment("pi_1", t0))
	assert.Error(t, bk.Complete(PartyCleaner, t0))
	assert.Equal(t, StatusConfirmed, bk.Status())
}

func TestConfirmPaymentTwiceRejected(t *testing.T) {
	bk := newTestBooking(t)
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))
	assert.True(t, bk.Payment().IsPaid)
	assert.Error(t, bk.ConfirmPayment("pi_1", t0))
}

func TestTaskUpdatesAutoComplete(t *testing.T) {
	bk := newTestBooking(t)
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))
	require.NoError(t, bk.MarkArrived(&GeoPoint{Latitude: 48.85, Longitude: 2.35}, t0))
	assert.Equal(t, StatusInProgress, bk.Status())

	tasks := bk.Checklist()
	done, err := bk.UpdateTasks([]TaskUpdate{
		{TaskID: tasks[0].ID, IsCompleted: true},
		{TaskID: uuid.New(), IsCompleted: true},
	}, t0)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, bk.Checklist().CompletedCount())

	finish := t0.Add(2 * time.Hour)
	done, err = bk.UpdateTasks([]TaskUpdate{
		{TaskID: tasks[1].ID, IsCompleted: true},
		{TaskID: tasks[2].ID, IsCompleted: true},
	}, finish)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, StatusCompleted, bk.Status())
	assert.Equal(t, PartyCleaner, bk.CompletedBy())
	require.NotNil(t, bk.HostReviewPeriodEndsAt())
	assert.Equal(t, finish.Add(7*24*time.Hour), *bk.HostReviewPeriodEndsAt())
	assert.Equal(t, t0, *bk.Checklist()[0].CompletedAt, "first task keeps its own completion time")
}

func TestCompletionCountedOnce(t *testing.T) {
	bk := completedBooking(t, t0)
	assert.True(t, bk.MarkCompletionCounted())
	assert.False(t, bk.MarkCompletionCounted())
}

func TestExplicitCompleteByHostLeavesOpenTasks(t *testing.T) {
	bk := newTestBooking(t)
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))
	require.NoError(t, bk.MarkArrived(nil, t0))
	require.NoError(t, bk.Complete(PartyHost, t0))
	assert.Equal(t, 0, bk.Checklist().CompletedCount())

	other := completedBooking(t, t0)
	assert.True(t, other.Checklist().AllCompleted(), "cleaner completion ticks stragglers")
}

func TestComplaintWindow(t *testing.T) {
	bk := completedBooking(t, t0)
	err := bk.SubmitComplaint("floor not mopped", nil, t0.AddDate(0, 0, 8))
	var se *domain.InvalidStateError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "review period has expired")
	assert.Equal(t, StatusCompleted, bk.Status())

	require.NoError(t, bk.SubmitComplaint("floor not mopped", []string{"https://cdn/1.jpg", " "}, t0.AddDate(0, 0, 3)))
	assert.Equal(t, StatusDisputed, bk.Status())
	assert.Equal(t, []string{"https://cdn/1.jpg"}, bk.Complaint().EvidencePhotos)

	assert.Error(t, bk.SubmitComplaint("again", nil, t0.AddDate(0, 0, 4)))
}

func TestComplaintRequiresDescription(t *testing.T) {
	bk := completedBooking(t, t0)
	var ve *domain.ValidationError
	assert.ErrorAs(t, bk.SubmitComplaint("  ", nil, t0.Add(time.Hour)), &ve)
}

func TestPayoutGate(t *testing.T) {
	bk := completedBooking(t, t0)

	early := bk.EvaluatePayout(t0.AddDate(0, 0, 6))
	assert.False(t, early.Eligible())
	assert.Equal(t, []string{"host review period has not elapsed"}, early.FailedConditions())

	at := t0.Add(ReviewPeriod)
	assert.True(t, bk.EvaluatePayout(at).Eligible(), "window end is inclusive")

	require.NoError(t, bk.RecordPayout("tr_1", at))
	assert.True(t, bk.Payment().IsPayoutSent)

	err := bk.RecordPayout("tr_2", at)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payout already sent")
	assert.Equal(t, "tr_1", bk.Payment().ProviderTransferID)
}

func TestPayoutBlockedByDispute(t *testing.T) {
	bk := completedBooking(t, t0)
	require.NoError(t, bk.SubmitComplaint("broken vase", nil, t0.AddDate(0, 0, 3)))

	gate := bk.EvaluatePayout(t0.AddDate(0, 0, 10))
	assert.False(t, gate.StatusCompleted)
	assert.False(t, gate.NotDisputed)
	assert.Error(t, bk.RecordPayout("tr_1", t0.AddDate(0, 0, 10)))
	assert.False(t, bk.Payment().IsPayoutSent)
}

func TestRejectOnlyWhilePending(t *testing.T) {
	bk := newTestBooking(t)
	assert.Error(t, bk.Reject("", t0))
	require.NoError(t, bk.Reject("schedule conflict", t0))
	assert.Equal(t, StatusRejected, bk.Status())
	assert.Equal(t, "schedule conflict", bk.Cancellation().Reason)

	paid := newTestBooking(t)
	require.NoError(t, paid.ConfirmPayment("pi_1", t0))
	assert.Error(t, paid.Reject("too late", t0))
}

func TestCancel(t *testing.T) {
	bk := newTestBooking(t)
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))

	assert.Error(t, bk.EnsureCancellable(""))
	assert.Error(t, bk.Cancel(PartyHost, "plans changed", "", t0), "paid booking needs a refund id")

	require.NoError(t, bk.Cancel(PartyHost, "plans changed", "re_1", t0))
	assert.Equal(t, StatusCancelled, bk.Status())
	assert.Equal(t, "re_1", bk.Payment().RefundID)
	assert.Equal(t, PartyHost, bk.Cancellation().CancelledBy)

	inProgress := newTestBooking(t)
	require.NoError(t, inProgress.ConfirmPayment("pi_2", t0))
	require.NoError(t, inProgress.MarkArrived(nil, t0))
	assert.Error(t, inProgress.EnsureCancellable("too late"))
}

func TestContactInfoLatch(t *testing.T) {
	bk := newTestBooking(t)
	assert.Error(t, bk.ShareContactInfo(t0))
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))
	require.NoError(t, bk.ShareContactInfo(t0))
	require.NoError(t, bk.ShareContactInfo(t0))
	assert.True(t, bk.ContactInfoShared())
}

func TestRateOncePerDirection(t *testing.T) {
	bk := completedBooking(t, t0)
	require.NoError(t, bk.Rate(PartyHost, 5, "spotless", t0))
	assert.Error(t, bk.Rate(PartyHost, 4, "", t0))
	require.NoError(t, bk.Rate(PartyCleaner, 4, "", t0))
	assert.Equal(t, 5, bk.CleanerRating().Value)
	assert.Equal(t, 4, bk.HostRating().Value)

	other := completedBooking(t, t0)
	var ve *domain.ValidationError
	assert.ErrorAs(t, other.Rate(PartyHost, 6, "", t0), &ve)
}

func TestResolveDispute(t *testing.T) {
	released := completedBooking(t, t0)
	require.NoError(t, released.SubmitComplaint("streaks", nil, t0.Add(time.Hour)))
	require.NoError(t, released.ResolveDispute(OutcomeRelease, "photos show clean windows", "", t0.Add(2*time.Hour)))
	assert.Equal(t, StatusCompleted, released.Status())
	assert.Equal(t, "release: photos show clean windows", released.Complaint().Resolution)
	assert.True(t, released.EvaluatePayout(t0.Add(ReviewPeriod)).Eligible())

	refunded := completedBooking(t, t0)
	require.NoError(t, refunded.SubmitComplaint("no-show", nil, t0.Add(time.Hour)))
	assert.Error(t, refunded.ResolveDispute(OutcomeRefund, "", "", t0))
	require.NoError(t, refunded.ResolveDispute(OutcomeRefund, "", "re_9", t0))
	assert.Equal(t, StatusRefunded, refunded.Status())
	assert.True(t, refunded.Status().IsTerminal())
}

func TestNeedsReminder(t *testing.T) {
	bk := newTestBooking(t)
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))

	dayBefore := bk.Schedule().Date.AddDate(0, 0, -1)
	assert.False(t, bk.NeedsReminder(dayBefore.AddDate(0, 0, -1)))
	assert.True(t, bk.NeedsReminder(dayBefore))

	bk.MarkReminderSent(dayBefore)
	assert.False(t, bk.NeedsReminder(dayBefore))
}

func TestEnsureDeletable(t *testing.T) {
	bk := newTestBooking(t)
	assert.NoError(t, bk.EnsureDeletable())
	require.NoError(t, bk.ConfirmPayment("pi_1", t0))
	assert.Error(t, bk.EnsureDeletable())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusPending.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusInProgress.CanBeCancelled())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())

	for _, s := range AllStatuses() {
		parsed, err := ParseBookingStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseBookingStatus("archived")
	assert.Error(t, err)
}
