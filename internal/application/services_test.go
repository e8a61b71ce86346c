package application

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

func TestPhotoService_ParticipantsOnly(t *testing.T) {
	h := newHarness(t, RatingStrategyScan)
	ctx := context.Background()
	id := h.create(t, h.listing)
	svc := NewPhotoService(h.photos, h.bookings, zap.NewNop())

	dto, err := svc.UploadPhoto(ctx, h.cleanerActor, id, UploadPhotoRequest{
		PhotoType: "arrival", PhotoURL: "https://cdn.example.com/door.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "cleaner", dto.UploaderRole)

	_, err = svc.UploadPhoto(ctx, h.cleanerActor, id, UploadPhotoRequest{
		PhotoType: "evidence", PhotoURL: "https://cdn.example.com/e.jpg",
	})
	var fe *domain.ForbiddenError
	require.ErrorAs(t, err, &fe)

	stranger := Actor{UserID: uuid.New(), Role: auth.RoleHost}
	_, err = svc.GetBookingPhotos(ctx, stranger, id)
	require.ErrorAs(t, err, &fe)

	photos, err := svc.GetBookingPhotos(ctx, h.adminActor, id)
	require.NoError(t, err)
	assert.Len(t, photos, 1)
}

func TestProfileService_CreateAndUpdate(t *testing.T) {
	repo := newFakeProfileRepo()
	svc := NewProfileService(repo, zap.NewNop())
	ctx := context.Background()
	actor := Actor{UserID: uuid.New(), Role: auth.RoleCleaner}

	created, err := svc.CreateMyProfile(ctx, actor, CreateProfileRequest{DisplayName: "Cleo", Email: "cleo@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cleaner", created.Role)
	assert.False(t, created.HasAccountRef)

	_, err = svc.CreateMyProfile(ctx, actor, CreateProfileRequest{DisplayName: "Cleo", Email: "cleo@example.com"})
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)

	phone := "+31 6 1234"
	updated, err := svc.UpdateMyProfile(ctx, actor, UpdateProfileRequest{Phone: &phone, AccountRef: "acct_1"})
	require.NoError(t, err)
	assert.True(t, updated.HasAccountRef)
	require.NotNil(t, updated.Contact)
	assert.Equal(t, "cleo@example.com", updated.Contact.Email)
	assert.Equal(t, phone, updated.Contact.Phone)

	public, err := svc.GetCleanerProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, public.Contact)

	_, err = svc.GetMyProfile(ctx, Actor{UserID: uuid.New(), Role: auth.RoleAdmin})
	var fe *domain.ForbiddenError
	require.ErrorAs(t, err, &fe)
}

func TestInvoiceService_RenderPDF(t *testing.T) {
	h := newHarness(t, RatingStrategyScan)
	ctx := context.Background()
	id := h.completed(t, h.listing)
	svc := NewInvoiceService(h.invoices, h.bookings, zap.NewNop())

	dto, err := svc.GetBookingInvoice(ctx, h.cleanerActor, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), dto.Amount)
	assert.Equal(t, "issued", dto.Status)

	pdf, name, err := svc.RenderInvoicePDF(ctx, h.hostActor, id)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, dto.Number+".pdf", name)

	_, _, err = svc.RenderInvoicePDF(ctx, Actor{UserID: uuid.New(), Role: auth.RoleCleaner}, id)
	var fe *domain.ForbiddenError
	require.ErrorAs(t, err, &fe)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", formatAmount(10000))
	assert.Equal(t, "1.15", formatAmount(115))
	assert.Equal(t, "-0.05", formatAmount(-5))
}
