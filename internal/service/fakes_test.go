package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/and161185/findit/internal/auth"
	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/limiter"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/notify"
	"github.com/and161185/findit/internal/repository"
	"github.com/and161185/findit/internal/storage"
)

// mem is an in-memory backend shared by the fake repositories. Every method
// takes the lock, so Transition behaves as a compare-and-swap.
type mem struct {
	mu     sync.Mutex
	seq    int64
	users  map[int64]*model.User
	items  map[int64]*model.Item
	claims map[int64]*model.Claim
	convs  map[int64]*model.Conversation
	idents map[int64]model.IdentityVerification
	msgs   []model.Message
}

func newMem() *mem {
	return &mem{
		users:  map[int64]*model.User{},
		items:  map[int64]*model.Item{},
		claims: map[int64]*model.Claim{},
		convs:  map[int64]*model.Conversation{},
		idents: map[int64]model.IdentityVerification{},
	}
}

func (m *mem) next() int64 { m.seq++; return m.seq }

func (m *mem) addUser(email, name string, role model.Role) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: m.next(), Email: email, FullName: name, Role: role, AuthProvider: model.ProviderEmail}
	m.users[u.ID] = u
	return u
}

func (m *mem) addItem(ownerID int64, title string) *model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &model.Item{ID: m.next(), UserID: ownerID, Title: title, Status: model.ItemFound, CreatedAt: time.Now()}
	m.items[it.ID] = it
	return it
}

func (m *mem) claim(id int64) model.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.claims[id]
}

func (m *mem) item(id int64) model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *mem) appendMsg(msg *model.Message) {
	msg.ID = m.next()
	msg.CreatedAt = time.Now()
	if u, ok := m.users[msg.SenderID]; ok {
		msg.SenderName = u.FullName
	}
	m.msgs = append(m.msgs, *msg)
}

type memUsers struct{ m *mem }

var _ repository.UserRepository = memUsers{}

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.users {
		if x.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}
	u.ID, u.CreatedAt = r.m.next(), time.Now()
	c := *u
	r.m.users[u.ID] = &c
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memUsers) UpsertGoogle(_ context.Context, u *model.User) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.users {
		if x.Email == u.Email {
			x.FullName = u.FullName
			if u.AvatarURL != "" {
				x.AvatarURL = u.AvatarURL
			}
			c := *x
			return &c, nil
		}
	}
	c := *u
	c.ID = r.m.next()
	r.m.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r memUsers) SetResetCode(_ context.Context, id int64, code string, expires time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.ResetCode, u.ResetCodeExpires = code, expires
	return nil
}

func (r memUsers) ResetPassword(_ context.Context, email, code, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email && u.ResetCode != "" && u.ResetCode == code && u.ResetCodeExpires.After(time.Now()) {
			u.PasswordHash, u.ResetCode, u.ResetCodeExpires = hash, "", time.Time{}
			return nil
		}
	}
	return errs.ErrInvalidCode
}

func (r memUsers) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.m.users, id)
	for iid, it := range r.m.items {
		if it.UserID == id {
			delete(r.m.items, iid)
		}
	}
	return nil
}

func (r memUsers) Stats(_ context.Context, id int64) (model.UserStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var s model.UserStats
	for _, it := range r.m.items {
		if it.UserID == id {
			s.Reported++
			if it.Status == model.ItemRecovered {
				s.Reunited++
			}
		}
	}
	for _, c := range r.m.claims {
		if c.ClaimerID == id {
			s.Claims++
		}
	}
	return s, nil
}

type memItems struct{ m *mem }

var _ repository.ItemRepository = memItems{}

func (r memItems) Create(_ context.Context, it *model.Item) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	it.ID, it.CreatedAt = r.m.next(), time.Now()
	if it.Status == "" {
		it.Status = model.ItemFound
	}
	c := *it
	r.m.items[it.ID] = &c
	return nil
}

func (r memItems) GetByID(_ context.Context, id int64) (*model.Item, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	it, ok := r.m.items[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *it
	if u, ok := r.m.users[it.UserID]; ok {
		c.ReporterName = u.FullName
	}
	return &c, nil
}

func (r memItems) sorted(keep func(*model.Item) bool) []model.Item {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.Item{}
	for _, it := range r.m.items {
		if keep(it) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r memItems) List(_ context.Context, f model.ItemFilter) ([]model.Item, error) {
	return r.sorted(func(it *model.Item) bool {
		return (f.Status == "" || it.Status == f.Status) && (f.Category == "" || it.Category == f.Category)
	}), nil
}

func (r memItems) ListByOwner(_ context.Context, userID int64) ([]model.Item, error) {
	return r.sorted(func(it *model.Item) bool { return it.UserID == userID }), nil
}

func (r memItems) SetPIN(_ context.Context, id int64, pin string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	it, ok := r.m.items[id]
	if !ok || it.Status == model.ItemRecovered {
		return errs.ErrConflict
	}
	it.VerificationPIN = pin
	return nil
}

func (r memItems) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.items[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.m.items, id)
	return nil
}

func (r memItems) DeleteAll(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := int64(len(r.m.items))
	r.m.items = map[int64]*model.Item{}
	return n, nil
}

func (r memItems) Locations(_ context.Context) ([]model.ItemLocation, error) {
	var out []model.ItemLocation
	for _, it := range r.sorted(func(*model.Item) bool { return true }) {
		out = append(out, model.ItemLocation{ID: it.ID, Location: it.Location})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memItems) SetLocations(_ context.Context, updates []model.ItemLocation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range updates {
		if it, ok := r.m.items[u.ID]; ok {
			it.Location = u.Location
		}
	}
	return nil
}

type memClaims struct{ m *mem }

var _ repository.ClaimRepository = memClaims{}

func (r memClaims) Create(_ context.Context, c *model.Claim, msgs []model.Message) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.claims {
		if x.ItemID == c.ItemID && x.ClaimerID == c.ClaimerID && x.Status != model.ClaimRejected {
			return errs.ErrConflict
		}
	}
	c.ID = r.m.next()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	cp := *c
	r.m.claims[c.ID] = &cp

	found := false
	for _, cv := range r.m.convs {
		found = found || (cv.ItemID == c.ItemID && cv.ClaimerID == c.ClaimerID)
	}
	if !found {
		id := r.m.next()
		r.m.convs[id] = &model.Conversation{ID: id, ItemID: c.ItemID, FinderID: c.FinderID, ClaimerID: c.ClaimerID}
	}
	for i := range msgs {
		msgs[i].ClaimID, msgs[i].ItemID = c.ID, c.ItemID
		r.m.appendMsg(&msgs[i])
	}
	return nil
}

func (r memClaims) GetByID(_ context.Context, id int64) (*model.Claim, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.claims[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memClaims) HasOpen(_ context.Context, itemID, claimerID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.claims {
		if c.ItemID == itemID && c.ClaimerID == claimerID && c.Status != model.ClaimRejected {
			return true, nil
		}
	}
	return false, nil
}

func (r memClaims) OpenForItem(_ context.Context, itemID, claimerID int64) (*model.Claim, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.claims {
		if c.ItemID == itemID && c.ClaimerID == claimerID && !c.Status.Terminal() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memClaims) Transition(_ context.Context, t model.ClaimTransition) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.claims[t.ClaimID]
	if !ok || !(model.TransitionRule{From: t.From}).Allows(c.Status) {
		return errs.ErrConflict
	}
	if t.ExpectCode != "" && c.HandoverCode != t.ExpectCode {
		return errs.ErrConflict
	}
	var it *model.Item
	if t.RecoverItem {
		it = r.m.items[c.ItemID]
		if it == nil || it.Status == model.ItemRecovered || (t.ConsumePIN != "" && it.VerificationPIN != t.ConsumePIN) {
			return errs.ErrConflict
		}
	}

	c.Status, c.UpdatedAt = t.To, time.Now()
	if t.NewCode != "" {
		c.HandoverCode = t.NewCode
	}
	if t.Identity != nil {
		r.m.idents[c.ID] = *t.Identity
	}
	if it != nil {
		it.Status, it.VerificationPIN = model.ItemRecovered, ""
	}
	if t.Message != nil {
		t.Message.ClaimID, t.Message.ItemID = c.ID, c.ItemID
		r.m.appendMsg(t.Message)
	}
	return nil
}

func (r memClaims) summaries(keep func(*model.Claim) bool) []model.ClaimSummary {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.ClaimSummary{}
	for _, c := range r.m.claims {
		if keep(c) {
			out = append(out, model.ClaimSummary{ClaimID: c.ID, Status: c.Status, ClaimerID: c.ClaimerID,
				FinderID: c.FinderID, UpdatedAt: c.UpdatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimID > out[j].ClaimID })
	return out
}

func (r memClaims) ListForUser(_ context.Context, userID int64) ([]model.ClaimSummary, error) {
	return r.summaries(func(c *model.Claim) bool { return c.ClaimerID == userID || c.FinderID == userID }), nil
}

func (r memClaims) ListByClaimer(_ context.Context, userID int64) ([]model.ClaimSummary, error) {
	return r.summaries(func(c *model.Claim) bool { return c.ClaimerID == userID }), nil
}

type memMessages struct {
	m           *mem
	markReadErr error
}

var _ repository.MessageRepository = memMessages{}

func (r memMessages) Append(_ context.Context, msg *model.Message) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.appendMsg(msg)
	return nil
}

func (r memMessages) filter(keep func(model.Message) bool) []model.Message {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Message
	for _, msg := range r.m.msgs {
		if keep(msg) {
			out = append(out, msg)
		}
	}
	return out
}

func (r memMessages) Thread(_ context.Context, claimID int64) ([]model.Message, error) {
	return r.filter(func(m model.Message) bool { return m.ClaimID == claimID }), nil
}

func (r memMessages) ConversationMessages(_ context.Context, id int64) ([]model.Message, error) {
	return r.filter(func(m model.Message) bool { return m.ConversationID == id }), nil
}

func (r memMessages) MarkRead(_ context.Context, id, receiverID int64) error {
	if r.markReadErr != nil {
		return r.markReadErr
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.msgs {
		if r.m.msgs[i].ConversationID == id && r.m.msgs[i].ReceiverID == receiverID {
			r.m.msgs[i].IsRead = true
		}
	}
	return nil
}

type memConvs struct{ m *mem }

var _ repository.ConversationRepository = memConvs{}

func (r memConvs) GetOrCreate(_ context.Context, itemID, finderID, claimerID int64) (*model.Conversation, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, cv := range r.m.convs {
		if cv.ItemID == itemID && cv.ClaimerID == claimerID {
			c := *cv
			return &c, false, nil
		}
	}
	cv := &model.Conversation{ID: r.m.next(), ItemID: itemID, FinderID: finderID, ClaimerID: claimerID}
	r.m.convs[cv.ID] = cv
	c := *cv
	return &c, true, nil
}

func (r memConvs) GetByID(_ context.Context, id int64) (*model.ConversationDetail, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cv, ok := r.m.convs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	d := &model.ConversationDetail{Conversation: *cv}
	d.Finder.ID, d.Claimer.ID = cv.FinderID, cv.ClaimerID
	if u := r.m.users[cv.FinderID]; u != nil {
		d.Finder.FullName = u.FullName
	}
	if u := r.m.users[cv.ClaimerID]; u != nil {
		d.Claimer.FullName = u.FullName
	}
	if it := r.m.items[cv.ItemID]; it != nil {
		d.ItemTitle = it.Title
	}
	return d, nil
}

func (r memConvs) ListForUser(_ context.Context, userID int64) ([]model.ConversationSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.ConversationSummary
	for _, cv := range r.m.convs {
		if cv.FinderID == userID || cv.ClaimerID == userID {
			out = append(out, model.ConversationSummary{ID: cv.ID, ItemID: cv.ItemID, IsFinder: cv.FinderID == userID})
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Email
}

var _ Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) Enqueue(e notify.Email) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
}

func (f *fakeNotifier) kinds() []notify.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Kind
	for _, e := range f.sent {
		out = append(out, e.Kind)
	}
	return out
}

type fakePhotos struct {
	saved   [][]byte
	deleted []string
	err     error
}

var _ storage.Store = (*fakePhotos)(nil)

func (f *fakePhotos) Save(_ context.Context, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, data)
	return "/uploads/photo.jpg", nil
}

func (f *fakePhotos) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeLimiter struct {
	allowOK     bool
	allowErr    error
	failBlocked bool

	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

type fakeGoogle struct {
	profile auth.GoogleProfile
}

var _ auth.GoogleVerifier = fakeGoogle{}

func (g fakeGoogle) Verify(_ context.Context, tok string) (auth.GoogleProfile, error) {
	if tok != "good" {
		return auth.GoogleProfile{}, errors.Join(errs.ErrUnauthorized, errors.New("bad token"))
	}
	return g.profile, nil
}

type fakeIssuer struct{}

var _ TokenIssuer = fakeIssuer{}

func (fakeIssuer) Issue(p model.Principal) (model.Tokens, error) {
	return model.Tokens{AccessToken: "tok-" + p.Email, ExpiresAt: time.Now().Add(time.Hour)}, nil
}
