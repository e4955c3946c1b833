package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"testing"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/notify"
	"github.com/stretchr/testify/require"
)

type itemFixture struct {
	m       *mem
	items   *ItemServiceImpl
	claims  *ClaimServiceImpl
	photos  *fakePhotos
	notes   *fakeNotifier
	owner   *model.User
	claimer *model.User
}

func newItemFixture(t *testing.T) *itemFixture {
	t.Helper()
	m := newMem()
	f := &itemFixture{m: m, photos: &fakePhotos{}, notes: &fakeNotifier{}}
	f.owner = m.addUser("bola@uni.edu", "Bola", model.RoleStudent)
	f.claimer = m.addUser("ada@uni.edu", "Ada", model.RoleStudent)
	f.items = NewItemService(memItems{m}, memClaims{m}, f.photos, f.notes)
	f.claims = NewClaimService(memClaims{m}, memMessages{m: m}, memItems{m}, memUsers{m}, NopNotifier{})
	return f
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestItem_Create(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)

	it, err := f.items.Create(context.Background(), f.owner.Principal(), NewItem{
		Title: " Blue wallet ", Category: "Wallets", Location: "BBS", DateFound: "2024-03-01",
		Photo: bytes.NewReader(pngBytes(t)),
	})
	require.NoError(t, err)
	require.Equal(t, "Blue wallet", it.Title)
	require.Equal(t, model.ItemFound, it.Status)
	require.Equal(t, "/uploads/photo.jpg", it.ImageURL)
	require.Len(t, f.photos.saved, 1)
	require.Equal(t, "Bola", it.ReporterName)

	require.Equal(t, []notify.Kind{notify.KindItemReported}, f.notes.kinds())
	require.Equal(t, "Blue wallet", f.notes.sent[0].Fields["title"])
}

// brokenItems fails inserts after the photo has been stored.
type brokenItems struct{ memItems }

func (brokenItems) Create(context.Context, *model.Item) error {
	return fmt.Errorf("%w: connection reset", errs.ErrUnavailable)
}

func TestItem_Create_InsertFailureRemovesPhoto(t *testing.T) {
	t.Parallel()
	m := newMem()
	owner := m.addUser("bola@uni.edu", "Bola", model.RoleStudent)
	photos := &fakePhotos{}
	notes := &fakeNotifier{}
	s := NewItemService(brokenItems{memItems{m}}, memClaims{m}, photos, notes)

	_, err := s.Create(context.Background(), owner.Principal(), NewItem{
		Title: "Blue wallet", Photo: bytes.NewReader(pngBytes(t)),
	})
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.Len(t, photos.saved, 1)
	require.Equal(t, []string{"/uploads/photo.jpg"}, photos.deleted)
	require.Empty(t, notes.kinds())

	// without a photo there is nothing to clean up
	_, err = s.Create(context.Background(), owner.Principal(), NewItem{Title: "Keys"})
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.Len(t, photos.deleted, 1)
}

func TestItem_Create_Validation(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)
	ctx := context.Background()
	p := f.owner.Principal()

	for name, in := range map[string]NewItem{
		"no title":    {Title: " "},
		"bad status":  {Title: "x", Status: model.ItemRecovered},
		"bad date":    {Title: "x", DateFound: "01/03/2024"},
		"not a photo": {Title: "x", Photo: bytes.NewReader([]byte("GIF89a"))},
	} {
		_, err := f.items.Create(ctx, p, in)
		require.ErrorIs(t, err, errs.ErrInvalidInput, name)
	}
	require.Empty(t, f.notes.kinds())
	require.Empty(t, f.photos.saved)
}

func TestItem_GetAndList_HidePIN(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)
	ctx := context.Background()
	it := f.m.addItem(f.owner.ID, "Keys")
	pin, err := f.items.GeneratePIN(ctx, f.owner.ID, it.ID)
	require.NoError(t, err)

	got, err := f.items.Get(ctx, f.owner.ID, it.ID)
	require.NoError(t, err)
	require.Equal(t, pin, got.VerificationPIN)

	got, err = f.items.Get(ctx, f.claimer.ID, it.ID)
	require.NoError(t, err)
	require.Empty(t, got.VerificationPIN)

	list, err := f.items.List(ctx, model.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Empty(t, list[0].VerificationPIN)

	_, err = f.items.List(ctx, model.ItemFilter{Status: "Stolen"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.items.Get(ctx, f.owner.ID, 404)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestItem_Delete_OwnerOrAdmin(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)
	ctx := context.Background()
	admin := f.m.addUser("root@uni.edu", "Root", model.RoleAdmin)
	a := f.m.addItem(f.owner.ID, "A")
	b := f.m.addItem(f.owner.ID, "B")

	require.ErrorIs(t, f.items.Delete(ctx, f.claimer.Principal(), a.ID), errs.ErrForbidden)
	require.NoError(t, f.items.Delete(ctx, f.owner.Principal(), a.ID))
	require.NoError(t, f.items.Delete(ctx, admin.Principal(), b.ID))
	require.ErrorIs(t, f.items.Delete(ctx, admin.Principal(), b.ID), errs.ErrNotFound)
}

func TestItem_GeneratePIN(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)
	ctx := context.Background()
	it := f.m.addItem(f.owner.ID, "Keys")

	_, err := f.items.GeneratePIN(ctx, f.claimer.ID, it.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)

	pin, err := f.items.GeneratePIN(ctx, f.owner.ID, it.ID)
	require.NoError(t, err)
	require.Len(t, pin, 4)
	require.Equal(t, pin, f.m.item(it.ID).VerificationPIN)

	f.m.items[it.ID].Status = model.ItemRecovered
	_, err = f.items.GeneratePIN(ctx, f.owner.ID, it.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestItem_VerifyPIN_CompletesClaim(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)
	ctx := context.Background()
	it := f.m.addItem(f.owner.ID, "Keys")
	c, err := f.claims.Start(ctx, f.claimer.Principal(), it.ID, "")
	require.NoError(t, err)
	f.m.items[it.ID].VerificationPIN = "0042"

	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.claimer.ID, it.ID, "0043"), errs.ErrInvalidCode)
	require.Equal(t, model.ItemFound, f.m.item(it.ID).Status)
	require.Equal(t, model.ClaimActive, f.m.claim(c.ID).Status)

	require.NoError(t, f.items.VerifyPIN(ctx, f.claimer.ID, it.ID, "0042"))
	got := f.m.item(it.ID)
	require.Equal(t, model.ItemRecovered, got.Status)
	require.Empty(t, got.VerificationPIN)
	require.Equal(t, model.ClaimReturned, f.m.claim(c.ID).Status)

	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.claimer.ID, it.ID, "0042"), errs.ErrConflict)
}

func TestItem_VerifyPIN_Preconditions(t *testing.T) {
	t.Parallel()
	f := newItemFixture(t)
	ctx := context.Background()
	it := f.m.addItem(f.owner.ID, "Keys")

	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.claimer.ID, it.ID, "12a4"), errs.ErrInvalidInput)
	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.owner.ID, it.ID, "1234"), errs.ErrForbidden)
	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.claimer.ID, it.ID, "1234"), errs.ErrConflict, "no PIN issued")

	f.m.items[it.ID].VerificationPIN = "1234"
	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.claimer.ID, it.ID, "1234"), errs.ErrConflict, "no open claim")
	require.Equal(t, model.ItemFound, f.m.item(it.ID).Status)
	require.ErrorIs(t, f.items.VerifyPIN(ctx, f.claimer.ID, 404, "1234"), errs.ErrNotFound)
}
