package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/service"
	"github.com/stretchr/testify/require"
)

// fakeTokens accepts "u<id>" and "admin" tokens.
type fakeTokens struct{}

func (fakeTokens) Parse(tok string) (model.Principal, error) {
	if tok == "admin" {
		return model.Principal{ID: 99, Role: model.RoleAdmin}, nil
	}
	var id int64
	if _, err := fmt.Sscanf(tok, "u%d", &id); err != nil || id <= 0 {
		return model.Principal{}, errs.ErrUnauthorized
	}
	return model.Principal{ID: id, Role: model.RoleStudent}, nil
}

var _ TokenParser = fakeTokens{}

// fakeAccounts serves stored accounts; ids in gone were deleted.
type fakeAccounts struct {
	recorder
	gone map[int64]bool
	role model.Role
	err  error
}

var _ AccountChecker = (*fakeAccounts)(nil)

func (f *fakeAccounts) Me(_ context.Context, id int64) (*model.User, error) {
	f.record(call{"me", id, 0, ""})
	switch {
	case f.err != nil:
		return nil, f.err
	case f.gone[id]:
		return nil, errs.ErrNotFound
	}
	role := f.role
	if role == "" {
		role = model.RoleStudent
	}
	return &model.User{ID: id, Role: role, FullName: "Stored Name"}, nil
}

type call struct {
	name     string
	callerID int64
	targetID int64
	arg      string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) record(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) last() call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return call{}
	}
	return r.calls[len(r.calls)-1]
}

type fakeClaims struct {
	recorder
	err     error
	code    string
	answers model.IdentityAnswers
}

var _ service.ClaimService = (*fakeClaims)(nil)

func (f *fakeClaims) Start(_ context.Context, c model.Principal, itemID int64, proof string) (*model.Claim, error) {
	f.record(call{"start", c.ID, itemID, proof})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Claim{ID: 5, ItemID: itemID, ClaimerID: c.ID}, nil
}
func (f *fakeClaims) Reject(_ context.Context, callerID, claimID int64) error {
	f.record(call{"reject", callerID, claimID, ""})
	return f.err
}
func (f *fakeClaims) RequestIdentity(_ context.Context, callerID, claimID int64) error {
	f.record(call{"request_identity", callerID, claimID, ""})
	return f.err
}
func (f *fakeClaims) SubmitIdentity(_ context.Context, callerID, claimID int64, a model.IdentityAnswers) error {
	f.record(call{"submit_identity", callerID, claimID, a.FullName})
	f.answers = a
	return f.err
}
func (f *fakeClaims) InitiateHandover(_ context.Context, callerID, claimID int64) (string, error) {
	f.record(call{"initiate", callerID, claimID, ""})
	return f.code, f.err
}
func (f *fakeClaims) ConfirmHandover(_ context.Context, callerID, claimID int64, code string) error {
	f.record(call{"confirm", callerID, claimID, code})
	return f.err
}
func (f *fakeClaims) List(_ context.Context, callerID int64) ([]model.ClaimSummary, error) {
	f.record(call{"list", callerID, 0, ""})
	return []model.ClaimSummary{{ClaimID: 5, ItemTitle: "Blue wallet", Status: model.ClaimActive}}, f.err
}
func (f *fakeClaims) Thread(_ context.Context, callerID, claimID int64) ([]model.Message, error) {
	f.record(call{"thread", callerID, claimID, ""})
	return []model.Message{
		{ID: 1, ClaimID: claimID, Type: model.MessageSystem, Content: "started"},
		{ID: 2, ClaimID: claimID, Type: model.MessageIdentityResponse, Content: `{"full_name":"Ada"}`},
	}, f.err
}
func (f *fakeClaims) Send(_ context.Context, callerID, claimID int64, content string) (*model.Message, error) {
	f.record(call{"send", callerID, claimID, content})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Message{ID: 11}, nil
}

type fakeItems struct {
	recorder
	err   error
	in    service.NewItem
	photo []byte
}

var _ service.ItemService = (*fakeItems)(nil)

func (f *fakeItems) Create(_ context.Context, c model.Principal, in service.NewItem) (*model.Item, error) {
	f.record(call{"create", c.ID, 0, in.Title})
	f.in = in
	if in.Photo != nil {
		b, err := io.ReadAll(in.Photo)
		if err != nil {
			return nil, err
		}
		f.photo = b
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Item{ID: 7, UserID: c.ID, Title: in.Title, Status: model.ItemFound}, nil
}
func (f *fakeItems) List(_ context.Context, flt model.ItemFilter) ([]model.Item, error) {
	f.record(call{"list", 0, 0, flt.Query + "|" + string(flt.Status) + "|" + flt.Category})
	return []model.Item{{ID: 7, Title: "Blue wallet"}}, f.err
}
func (f *fakeItems) Get(_ context.Context, viewerID, id int64) (*model.Item, error) {
	f.record(call{"get", viewerID, id, ""})
	if f.err != nil {
		return nil, f.err
	}
	it := &model.Item{ID: id, UserID: 2, Title: "Blue wallet", ReporterName: "Bola"}
	if viewerID == 2 {
		it.VerificationPIN = "0042"
	}
	return it, nil
}
func (f *fakeItems) Delete(_ context.Context, c model.Principal, id int64) error {
	f.record(call{"delete", c.ID, id, ""})
	return f.err
}
func (f *fakeItems) GeneratePIN(_ context.Context, callerID, id int64) (string, error) {
	f.record(call{"generate_pin", callerID, id, ""})
	return "0042", f.err
}
func (f *fakeItems) VerifyPIN(_ context.Context, callerID, id int64, pin string) error {
	f.record(call{"verify_pin", callerID, id, pin})
	return f.err
}

type fakeAuth struct {
	recorder
	err error
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) tokens(email string) (model.Tokens, model.User, error) {
	if f.err != nil {
		return model.Tokens{}, model.User{}, f.err
	}
	return model.Tokens{AccessToken: "tok", ExpiresAt: time.Unix(1700000000, 0).UTC()},
		model.User{ID: 1, Email: email, FullName: "Ada", Role: model.RoleStudent}, nil
}
func (f *fakeAuth) Register(_ context.Context, email, _, fullName string) (model.Tokens, model.User, error) {
	f.record(call{"register", 0, 0, email + "|" + fullName})
	return f.tokens(email)
}
func (f *fakeAuth) LoginWithIP(_ context.Context, email, _, ip string) (model.Tokens, model.User, error) {
	f.record(call{"login", 0, 0, ip})
	return f.tokens(email)
}
func (f *fakeAuth) LoginWithGoogle(_ context.Context, idToken string) (model.Tokens, model.User, error) {
	f.record(call{"google", 0, 0, idToken})
	return f.tokens("ada@example.com")
}
func (f *fakeAuth) ForgotPassword(_ context.Context, email string) error {
	f.record(call{"forgot", 0, 0, email})
	return f.err
}
func (f *fakeAuth) ResetPassword(_ context.Context, email, code, _ string) error {
	f.record(call{"reset", 0, 0, email + "|" + code})
	return f.err
}

type fakeConversations struct {
	recorder
	created bool
	err     error
}

var _ service.ConversationService = (*fakeConversations)(nil)

func (f *fakeConversations) Initiate(_ context.Context, callerID, itemID int64) (*model.Conversation, bool, error) {
	f.record(call{"initiate", callerID, itemID, ""})
	if f.err != nil {
		return nil, false, f.err
	}
	return &model.Conversation{ID: 3, ItemID: itemID, ClaimerID: callerID}, f.created, nil
}
func (f *fakeConversations) List(_ context.Context, callerID int64) ([]model.ConversationSummary, error) {
	f.record(call{"list", callerID, 0, ""})
	return []model.ConversationSummary{{ID: 3, ItemTitle: "Blue wallet", Unread: true}}, f.err
}
func (f *fakeConversations) Get(_ context.Context, callerID, id int64) (*model.ConversationDetail, error) {
	f.record(call{"get", callerID, id, ""})
	if f.err != nil {
		return nil, f.err
	}
	return &model.ConversationDetail{
		Conversation: model.Conversation{ID: id, ItemID: 7, FinderID: 2, ClaimerID: 1},
		ItemTitle:    "Blue wallet",
		Finder:       model.UserRef{ID: 2, FullName: "Bola"},
		Claimer:      model.UserRef{ID: 1, FullName: "Ada"},
	}, nil
}
func (f *fakeConversations) Messages(_ context.Context, callerID, id int64) ([]model.Message, error) {
	f.record(call{"messages", callerID, id, ""})
	return nil, f.err
}
func (f *fakeConversations) Send(_ context.Context, callerID, id int64, content string) (*model.Message, error) {
	f.record(call{"send", callerID, id, content})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Message{ID: 12}, nil
}

type fakeUsers struct {
	recorder
}

var _ service.UserService = (*fakeUsers)(nil)

func (f *fakeUsers) Me(_ context.Context, callerID int64) (*model.User, error) {
	f.record(call{"me", callerID, 0, ""})
	return &model.User{ID: callerID, Email: "ada@example.com", FullName: "Ada"}, nil
}
func (f *fakeUsers) Stats(_ context.Context, callerID int64) (model.UserStats, error) {
	f.record(call{"stats", callerID, 0, ""})
	return model.UserStats{Reported: 3, Claims: 2, Reunited: 1}, nil
}
func (f *fakeUsers) MyItems(_ context.Context, callerID int64) ([]model.Item, error) {
	f.record(call{"items", callerID, 0, ""})
	return nil, nil
}
func (f *fakeUsers) MyClaims(_ context.Context, callerID int64) ([]model.ClaimSummary, error) {
	f.record(call{"claims", callerID, 0, ""})
	return nil, nil
}
func (f *fakeUsers) DeleteAccount(_ context.Context, callerID int64) error {
	f.record(call{"delete", callerID, 0, ""})
	return nil
}

type fakeAdmin struct {
	recorder
}

var _ service.AdminService = (*fakeAdmin)(nil)

func (f *fakeAdmin) NormalizeLocations(context.Context) (service.NormalizeResult, error) {
	f.record(call{"normalize", 0, 0, ""})
	return service.NormalizeResult{Total: 10, Updated: 4}, nil
}
func (f *fakeAdmin) WipeItems(context.Context) (int64, error) {
	f.record(call{"wipe", 0, 0, ""})
	return 10, nil
}
func (f *fakeAdmin) DeleteItem(_ context.Context, id int64) error {
	f.record(call{"delete", 0, id, ""})
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fixture struct {
	auth   *fakeAuth
	users  *fakeUsers
	items  *fakeItems
	claims *fakeClaims
	convs  *fakeConversations
	admin  *fakeAdmin
	h      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:   &fakeAuth{},
		users:  &fakeUsers{},
		items:  &fakeItems{},
		claims: &fakeClaims{},
		convs:  &fakeConversations{},
		admin:  &fakeAdmin{},
	}
	srv := New(Deps{
		Auth: f.auth, Users: f.users, Items: f.items, Claims: f.claims,
		Conversations: f.convs, Admin: f.admin,
		Tokens: fakeTokens{}, DB: fakePinger{},
	}, Options{})
	f.h = srv.Routes()
	return f
}

// do sends a request as token (empty for anonymous) and returns the recorder.
func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"code":"`+code+`"`)
}
