package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/repository"
)

type txMarker struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

// callLog records the order of side effects across stubs.
type callLog struct {
	entries []string
}

func (l *callLog) add(entry string) {
	if l != nil {
		l.entries = append(l.entries, entry)
	}
}

type stubUserRepo struct {
	log        *callLog
	users      map[string]*domain.User
	approved   map[string]bool
	methods    map[string]*domain.NativeAuthenticationMethod
	roles      map[string][]domain.Role
	findErr    error
	updateErr  error
	lastLogins map[string]time.Time
	roleLoads  int
	txUpdates  int
}

func newStubUserRepo(log *callLog) *stubUserRepo {
	return &stubUserRepo{
		log:        log,
		users:      make(map[string]*domain.User),
		approved:   make(map[string]bool),
		methods:    make(map[string]*domain.NativeAuthenticationMethod),
		roles:      make(map[string][]domain.Role),
		lastLogins: make(map[string]time.Time),
	}
}

func (r *stubUserRepo) addUser(user domain.User, passwordHash string, approved bool) {
	u := user
	r.users[u.Identifier] = &u
	r.approved[u.ID] = approved
	if passwordHash != "" {
		r.methods[u.ID] = &domain.NativeAuthenticationMethod{
			ID:           "nam-" + u.ID,
			UserID:       u.ID,
			Identifier:   u.Identifier,
			PasswordHash: passwordHash,
		}
	}
}

func (r *stubUserRepo) FindActiveByIdentifier(_ context.Context, identifier string, filter port.IdentityFilter) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	user, ok := r.users[identifier]
	if !ok || user.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	if filter.RequireApprovedCustomer && !r.approved[user.ID] {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) ListRolesWithChannels(_ context.Context, userID string) ([]domain.Role, error) {
	r.roleLoads++
	r.log.add("roles")
	return r.roles[userID], nil
}

func (r *stubUserRepo) GetNativeAuthenticationMethod(_ context.Context, userID string) (*domain.NativeAuthenticationMethod, error) {
	method, ok := r.methods[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *method
	return &copy, nil
}

func (r *stubUserRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if inTx(ctx) {
		r.txUpdates++
	}
	r.log.add("last_login")
	r.lastLogins[userID] = at
	return nil
}

type stubSessionRepo struct {
	log       *callLog
	sessions  map[string]domain.Session
	createErr error
	txWrites  int
}

func newStubSessionRepo(log *callLog, existing ...domain.Session) *stubSessionRepo {
	repo := &stubSessionRepo{log: log, sessions: make(map[string]domain.Session)}
	for _, session := range existing {
		repo.sessions[session.ID] = session
	}
	return repo
}

func (r *stubSessionRepo) Create(ctx context.Context, session domain.Session) error {
	if r.createErr != nil {
		return r.createErr
	}
	if inTx(ctx) {
		r.txWrites++
	}
	r.log.add("create_session")
	session.Token = ""
	session.User = nil
	r.sessions[session.ID] = session
	return nil
}

func (r *stubSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	for _, session := range r.sessions {
		if session.TokenHash == tokenHash {
			copy := session
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubSessionRepo) DeleteByActiveOrderID(ctx context.Context, orderID string) ([]string, error) {
	if inTx(ctx) {
		r.txWrites++
	}
	r.log.add("evict_order_sessions")
	hashes := make([]string, 0)
	for id, session := range r.sessions {
		if session.ActiveOrderID != nil && *session.ActiveOrderID == orderID {
			hashes = append(hashes, session.TokenHash)
			delete(r.sessions, id)
		}
	}
	return hashes, nil
}

func (r *stubSessionRepo) Delete(_ context.Context, sessionID string) error {
	if _, ok := r.sessions[sessionID]; !ok {
		return repository.ErrNotFound
	}
	r.log.add("delete_session")
	delete(r.sessions, sessionID)
	return nil
}

func (r *stubSessionRepo) boundTo(orderID string) int {
	count := 0
	for _, session := range r.sessions {
		if session.ActiveOrderID != nil && *session.ActiveOrderID == orderID {
			count++
		}
	}
	return count
}

type stubTransactor struct {
	calls int
	err   error
}

func (t *stubTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		return err
	}
	return t.err
}

type stubCache struct {
	entries map[string]domain.Session
	deleted []string
	getErr  error
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]domain.Session)}
}

func (c *stubCache) Get(_ context.Context, tokenHash string) (*domain.Session, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	session, ok := c.entries[tokenHash]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (c *stubCache) Set(_ context.Context, session domain.Session, _ time.Duration) error {
	session.Token = ""
	c.entries[session.TokenHash] = session
	return nil
}

func (c *stubCache) Delete(_ context.Context, tokenHashes ...string) error {
	for _, hash := range tokenHashes {
		c.deleted = append(c.deleted, hash)
		delete(c.entries, hash)
	}
	return nil
}

type recordingAudit struct {
	log       *callLog
	attempted []domain.AttemptedLoginEvent
	logins    []domain.LoginEvent
	err       error
}

func (a *recordingAudit) PublishAttemptedLogin(_ context.Context, event domain.AttemptedLoginEvent) error {
	a.log.add("event:attempted")
	a.attempted = append(a.attempted, event)
	return a.err
}

func (a *recordingAudit) PublishLogin(_ context.Context, event domain.LoginEvent) error {
	a.log.add("event:login")
	a.logins = append(a.logins, event)
	return a.err
}

type recordingTokenWriter struct {
	log        *callLog
	tokens     []string
	rememberMe []bool
}

func (w *recordingTokenWriter) AttachSessionToken(token string, rememberMe bool) {
	w.log.add("attach_token")
	w.tokens = append(w.tokens, token)
	w.rememberMe = append(w.rememberMe, rememberMe)
}

// countingCipher stores hashes as "plain$<password>" and counts comparisons.
type countingCipher struct {
	checks     int
	lastHash   string
	lastSecret string
}

const testDummyHash = "plain$dummy-secret"

func (c *countingCipher) Hash(password string) (string, error) {
	return "plain$" + password, nil
}

func (c *countingCipher) Check(password, encoded string) bool {
	c.checks++
	c.lastHash = encoded
	c.lastSecret = password
	return password != "" && encoded == "plain$"+password
}

func (c *countingCipher) DummyHash() string {
	return testDummyHash
}

type stubAdminRepo struct {
	admins map[string]domain.Administrator
	err    error
}

func (r *stubAdminRepo) FindByUserID(_ context.Context, userID string) (*domain.Administrator, error) {
	if r.err != nil {
		return nil, r.err
	}
	admin, ok := r.admins[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &admin, nil
}

type recordingMetrics struct {
	outcomes []string
	evicted  int
}

func (m *recordingMetrics) ObserveLogin(api, method, outcome string, _ time.Duration) {
	m.outcomes = append(m.outcomes, fmt.Sprintf("%s/%s/%s", api, method, outcome))
}

func (m *recordingMetrics) ObserveEvictedSessions(n int) {
	m.evicted += n
}

type fixture struct {
	log      *callLog
	users    *stubUserRepo
	sessions *stubSessionRepo
	tx       *stubTransactor
	cache    *stubCache
	audit    *recordingAudit
	cipher   *countingCipher
	admins   *stubAdminRepo
	metrics  *recordingMetrics
	writer   *recordingTokenWriter
	registry *StrategyRegistry
	sessSvc  *SessionService
	auth     *AuthService
	gate     *LoginService
	now      time.Time
}

type fixtureOptions struct {
	settings         config.AuthSettings
	adminStrategy    []string
	shopStrategy     []string
	extra            []AuthenticationStrategy
	existingSessions []domain.Session
}

func defaultSettings() config.AuthSettings {
	return config.AuthSettings{
		AdminStrategies:     []string{domain.NativeStrategyName},
		ShopStrategies:      []string{domain.NativeStrategyName},
		RequireVerification: true,
		SessionDuration:     24 * time.Hour,
		SessionCacheTTL:     time.Minute,
	}
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	settings := opts.settings
	if settings.SessionDuration == 0 {
		settings = defaultSettings()
	}
	adminNames := opts.adminStrategy
	if adminNames == nil {
		adminNames = settings.AdminStrategies
	}
	shopNames := opts.shopStrategy
	if shopNames == nil {
		shopNames = settings.ShopStrategies
	}

	log := &callLog{}
	f := &fixture{
		log:      log,
		users:    newStubUserRepo(log),
		sessions: newStubSessionRepo(log, opts.existingSessions...),
		tx:       &stubTransactor{},
		cache:    newStubCache(),
		audit:    &recordingAudit{log: log},
		cipher:   &countingCipher{},
		admins:   &stubAdminRepo{admins: make(map[string]domain.Administrator)},
		metrics:  &recordingMetrics{},
		writer:   &recordingTokenWriter{log: log},
		now:      time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	shopNative, err := NewNativeStrategy(f.users, f.cipher, port.IdentityFilter{RequireApprovedCustomer: true})
	if err != nil {
		t.Fatalf("NewNativeStrategy: %v", err)
	}
	adminNative, err := NewNativeStrategy(f.users, f.cipher, port.IdentityFilter{})
	if err != nil {
		t.Fatalf("NewNativeStrategy: %v", err)
	}

	available := StrategySet{
		Admin: append([]AuthenticationStrategy{adminNative}, opts.extra...),
		Shop:  append([]AuthenticationStrategy{shopNative}, opts.extra...),
	}
	f.registry, err = NewStrategyRegistry(adminNames, shopNames, available)
	if err != nil {
		t.Fatalf("NewStrategyRegistry: %v", err)
	}

	logger := zaptest.NewLogger(t)
	f.sessSvc = NewSessionService(f.users, f.sessions, f.tx, settings, logger).
		WithCache(f.cache, settings.SessionCacheTTL).
		WithMetrics(f.metrics)
	f.sessSvc.WithClock(func() time.Time { return f.now })

	tokenSeq := 0
	f.sessSvc.newToken = func() (string, string, error) {
		tokenSeq++
		token := fmt.Sprintf("token-%d", tokenSeq)
		return token, "hash-" + token, nil
	}

	f.auth = NewAuthService(f.registry, f.sessSvc, f.audit, logger).WithMetrics(f.metrics)
	f.auth.WithClock(func() time.Time { return f.now })
	f.gate = NewLoginService(f.auth, f.registry, f.sessSvc, f.admins, logger)

	return f
}

func (f *fixture) seedCustomer(identifier, password string, verified, approved bool) domain.User {
	user := domain.User{
		ID:         "user-" + identifier,
		Identifier: identifier,
		Verified:   verified,
		CreatedAt:  f.now.Add(-48 * time.Hour),
	}
	f.users.addUser(user, "plain$"+password, approved)
	f.users.roles[user.ID] = []domain.Role{{
		ID:          "role-customer",
		Code:        "customer",
		Permissions: []string{"Authenticated"},
		Channels:    []domain.Channel{{ID: "ch-1", Code: "default", Token: "default-token"}},
	}}
	return user
}

func shopContext() domain.RequestContext {
	return domain.RequestContext{APIType: domain.APITypeShop, IP: "203.0.113.7", RequestID: "req-shop"}
}

func adminContext() domain.RequestContext {
	return domain.RequestContext{APIType: domain.APITypeAdmin, IP: "198.51.100.1", RequestID: "req-admin"}
}

var errUnexpectedCall = errors.New("unexpected call")
