package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/clock"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
	"github.com/jessenaser/duobreak/internal/pkg/validator"
)

var testTime = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	recs   map[string]*entity.KeyRecord
	closed bool
	newPwd string
}

func (f *fakeStore) Path() string { return "fake.duo" }
func (f *fakeStore) Close()       { f.closed = true }

func (f *fakeStore) AddKey(name string, rec *entity.KeyRecord) error {
	if _, ok := f.recs[name]; ok {
		return goerror.Wrap(nil, "exists", goerror.CodeDuplicateKey)
	}
	cp := rec.Clone()
	cp.Name = name
	f.recs[name] = cp
	return nil
}

func (f *fakeStore) DeleteKey(name string) error {
	if _, ok := f.recs[name]; !ok {
		return goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	delete(f.recs, name)
	return nil
}

func (f *fakeStore) GetKey(name string) (*entity.KeyRecord, error) {
	rec, ok := f.recs[name]
	if !ok {
		return nil, goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	return rec.Clone(), nil
}

func (f *fakeStore) ListKeys() []entity.KeySummary {
	out := make([]entity.KeySummary, 0, len(f.recs))
	for _, rec := range f.recs {
		out = append(out, rec.Summary())
	}
	return out
}

func (f *fakeStore) IncrementCounter(name string) (uint64, error) {
	rec, ok := f.recs[name]
	if !ok {
		return 0, goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	rec.Counter++
	return rec.Counter, nil
}

func (f *fakeStore) PeekCounter(name string) (uint64, error) {
	rec, ok := f.recs[name]
	if !ok {
		return 0, goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	return rec.Counter, nil
}

func (f *fakeStore) LogCode(name, code string, at time.Time) error {
	rec, ok := f.recs[name]
	if !ok {
		return goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	rec.Log = append(rec.Log, entity.CodeLogEntry{At: at, Code: code})
	return nil
}

func (f *fakeStore) RecentCodes(name string, n int) ([]entity.CodeLogEntry, error) {
	rec, ok := f.recs[name]
	if !ok {
		return nil, goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	log := rec.Log
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	return log, nil
}

func (f *fakeStore) Generate(name string, at time.Time, code func(uint64) (string, error)) (uint64, string, error) {
	rec, ok := f.recs[name]
	if !ok {
		return 0, "", goerror.Wrap(nil, "missing", goerror.CodeNotFound)
	}
	c, err := code(rec.Counter + 1)
	if err != nil {
		return 0, "", goerror.NewServer(err)
	}
	rec.Counter++
	rec.Log = append(rec.Log, entity.CodeLogEntry{At: at, Code: c})
	return rec.Counter, c, nil
}

func (f *fakeStore) ChangePassword(newPassword string) error {
	f.newPwd = newPassword
	return nil
}

type fakeOpener struct {
	store   *fakeStore
	created bool
	openErr error
}

func (f *fakeOpener) Open(path, password string) (VaultStore, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.store, nil
}

func (f *fakeOpener) Create(path, password string) (VaultStore, error) {
	f.created = true
	return f.store, nil
}

func (f *fakeOpener) OpenOrCreate(path, password string) (VaultStore, error) {
	if f.openErr != nil {
		f.created = true
	}
	return f.store, nil
}

type fakeClient struct {
	activations int
	gotCode     string
	gotHost     string
	actErr      error

	gotAnswer   entity.Answer
	gotAttempts int
	gotInterval time.Duration
	outcome     *entity.PushOutcome
	pushErr     error
}

func (f *fakeClient) Activate(ctx context.Context, code, host string) (*entity.KeyRecord, error) {
	f.activations++
	f.gotCode, f.gotHost = code, host
	if f.actErr != nil {
		return nil, f.actErr
	}
	return &entity.KeyRecord{
		ActivationCode: code,
		Host:           host,
		Response: entity.RegistrationResponse{
			AKey:         "akey",
			PKey:         "pkey",
			HOTPSecret:   "raw-seed",
			CustomerName: "Acme Corp",
		},
	}, nil
}

func (f *fakeClient) ApprovePush(ctx context.Context, rec *entity.KeyRecord, answer entity.Answer, maxAttempts int, interval time.Duration) (*entity.PushOutcome, error) {
	f.gotAnswer, f.gotAttempts, f.gotInterval = answer, maxAttempts, interval
	return f.outcome, f.pushErr
}

type fakeOTP struct{}

func (fakeOTP) CodeAt(seed string, counter uint64) (string, error) {
	return fmt.Sprintf("%s:%06d", seed, counter), nil
}

type fakeConfig struct {
	ints map[string]int
}

func (f fakeConfig) GetString(key string) string { return "" }
func (f fakeConfig) GetBool(key string) bool     { return false }
func (f fakeConfig) GetInt(key string) int       { return f.ints[key] }
func (f fakeConfig) GetSecond(key string) time.Duration {
	return time.Duration(f.ints[key]) * time.Second
}

type fixture struct {
	uc     *Usecase
	store  *fakeStore
	opener *fakeOpener
	client *fakeClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator failed: %v", err)
	}

	store := &fakeStore{recs: map[string]*entity.KeyRecord{}}
	opener := &fakeOpener{store: store}
	client := &fakeClient{}

	uc := New(Dependency{
		Opener:    opener,
		Client:    client,
		HOTP:      fakeOTP{},
		Validator: v,
		Config:    fakeConfig{ints: map[string]int{"push.max_attempts": 7, "push.poll_interval_seconds": 3}},
		Clock:     clock.NewFixed(testTime),
	})
	return &fixture{uc: uc, store: store, opener: opener, client: client}
}

func storedRecord(name string, counter uint64) *entity.KeyRecord {
	return &entity.KeyRecord{
		Name:           name,
		ActivationCode: "AAAABBBBCCCC",
		Host:           "api-12345678.duosecurity.com",
		Response: entity.RegistrationResponse{
			AKey:       "akey",
			PKey:       "pkey",
			HOTPSecret: "raw-seed",
		},
		Counter: counter,
	}
}

func activationPayload(code, host string) string {
	return code + "-" + base64.StdEncoding.EncodeToString([]byte(host))
}

func TestKeyAdd(t *testing.T) {
	f := newFixture(t)

	out, err := f.uc.KeyAdd(context.Background(), KeyAddInput{
		VaultPath: "fake.duo",
		Password:  "pw",
		Name:      "work",
		Payload:   activationPayload("AAAABBBBCCCC", "api-12345678.duosecurity.com"),
	})
	if err != nil {
		t.Fatalf("KeyAdd failed: %v", err)
	}

	if f.client.gotCode != "AAAABBBBCCCC" || f.client.gotHost != "api-12345678.duosecurity.com" {
		t.Fatalf("client got code=%q host=%q", f.client.gotCode, f.client.gotHost)
	}
	if _, ok := f.store.recs["work"]; !ok {
		t.Fatalf("record not stored")
	}
	if out.CustomerName != "Acme Corp" {
		t.Fatalf("customer name = %q", out.CustomerName)
	}
	if !f.store.closed {
		t.Fatalf("store not closed")
	}
}

// A name collision must fail before the handshake: activation codes are
// single-use.
func TestKeyAddDuplicateDoesNotActivate(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 0)

	_, err := f.uc.KeyAdd(context.Background(), KeyAddInput{
		VaultPath: "fake.duo",
		Password:  "pw",
		Name:      "work",
		Payload:   activationPayload("AAAABBBBCCCC", "api-12345678.duosecurity.com"),
	})
	if !errors.Is(err, goerror.ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
	if f.client.activations != 0 {
		t.Fatalf("activation ran %d times despite the duplicate", f.client.activations)
	}
}

func TestKeyAddRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)

	for _, payload := range []string{
		"no-separator-but-bad-base64-!!!",
		"CODE-" + base64.StdEncoding.EncodeToString([]byte("not a hostname")),
	} {
		_, err := f.uc.KeyAdd(context.Background(), KeyAddInput{
			VaultPath: "fake.duo",
			Password:  "pw",
			Name:      "work",
			Payload:   payload,
		})
		if goerror.CodeFor(err) != goerror.CodeInvalidInput {
			t.Fatalf("payload %q: got %v, want CodeInvalidInput", payload, err)
		}
	}
	if f.client.activations != 0 {
		t.Fatalf("activation ran for malformed payloads")
	}
}

func TestKeyAddValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.KeyAdd(context.Background(), KeyAddInput{})
	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.Type() != goerror.TypeValidation {
		t.Fatalf("got %v, want a validation error", err)
	}
}

func TestKeyDelete(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 0)

	if err := f.uc.KeyDelete(context.Background(), KeyDeleteInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work",
	}); err != nil {
		t.Fatalf("KeyDelete failed: %v", err)
	}
	if _, ok := f.store.recs["work"]; ok {
		t.Fatalf("record still stored")
	}

	err := f.uc.KeyDelete(context.Background(), KeyDeleteInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work",
	})
	if !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCodeGenerate(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 0)

	out, err := f.uc.CodeGenerate(context.Background(), CodeGenerateInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work",
	})
	if err != nil {
		t.Fatalf("CodeGenerate failed: %v", err)
	}

	if out.Counter != 1 {
		t.Fatalf("counter = %d, want 1", out.Counter)
	}
	if out.Code != "raw-seed:000001" {
		t.Fatalf("code = %q, want the seed-bound code at counter 1", out.Code)
	}
	if !out.At.Equal(testTime) {
		t.Fatalf("at = %v, want the fixed clock time", out.At)
	}
	if got := f.store.recs["work"]; got.Counter != 1 || len(got.Log) != 1 {
		t.Fatalf("store state after generate: counter=%d log=%d", got.Counter, len(got.Log))
	}
}

func TestCodeViewDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 3)

	out, err := f.uc.CodeView(context.Background(), CodeViewInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work",
	})
	if err != nil {
		t.Fatalf("CodeView failed: %v", err)
	}
	if out.Counter != 3 || out.Code != "raw-seed:000003" {
		t.Fatalf("view = (%d, %q), want (3, raw-seed:000003)", out.Counter, out.Code)
	}
	if f.store.recs["work"].Counter != 3 {
		t.Fatalf("view advanced the counter to %d", f.store.recs["work"].Counter)
	}
}

func TestCodeViewAtZeroCounter(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 0)

	_, err := f.uc.CodeView(context.Background(), CodeViewInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work",
	})
	if goerror.CodeFor(err) != goerror.CodeInvalidInput {
		t.Fatalf("got %v, want CodeInvalidInput", err)
	}
}

func TestCodeHistory(t *testing.T) {
	f := newFixture(t)
	rec := storedRecord("work", 3)
	for i := 1; i <= 3; i++ {
		rec.Log = append(rec.Log, entity.CodeLogEntry{At: testTime, Code: fmt.Sprintf("%06d", i)})
	}
	f.store.recs["work"] = rec

	got, err := f.uc.CodeHistory(context.Background(), CodeHistoryInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work", Count: 2,
	})
	if err != nil {
		t.Fatalf("CodeHistory failed: %v", err)
	}
	if len(got) != 2 || got[0].Code != "000002" || got[1].Code != "000003" {
		t.Fatalf("history = %+v, want the last two oldest-first", got)
	}
}

func TestPushApproveUsesConfiguredWindow(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 0)
	f.client.outcome = &entity.PushOutcome{State: entity.PushStateApproved, Attempts: 2}

	out, err := f.uc.PushApprove(context.Background(), PushApproveInput{
		VaultPath: "fake.duo", Password: "pw", Name: "work",
	})
	if err != nil {
		t.Fatalf("PushApprove failed: %v", err)
	}
	if out.State != entity.PushStateApproved {
		t.Fatalf("state = %v", out.State)
	}
	if f.client.gotAnswer != entity.AnswerApprove {
		t.Fatalf("answer = %v, want approve", f.client.gotAnswer)
	}
	if f.client.gotAttempts != 7 || f.client.gotInterval != 3*time.Second {
		t.Fatalf("window = (%d, %v), want the configured (7, 3s)", f.client.gotAttempts, f.client.gotInterval)
	}
}

func TestPushApproveOverridesAndDeny(t *testing.T) {
	f := newFixture(t)
	f.store.recs["work"] = storedRecord("work", 0)
	f.client.outcome = &entity.PushOutcome{State: entity.PushStateDenied, Attempts: 1}

	out, err := f.uc.PushApprove(context.Background(), PushApproveInput{
		VaultPath:    "fake.duo",
		Password:     "pw",
		Name:         "work",
		Deny:         true,
		MaxAttempts:  2,
		PollInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("PushApprove failed: %v", err)
	}
	if out.State != entity.PushStateDenied {
		t.Fatalf("state = %v", out.State)
	}
	if f.client.gotAnswer != entity.AnswerDeny {
		t.Fatalf("answer = %v, want deny", f.client.gotAnswer)
	}
	if f.client.gotAttempts != 2 || f.client.gotInterval != time.Second {
		t.Fatalf("window = (%d, %v), want the overrides (2, 1s)", f.client.gotAttempts, f.client.gotInterval)
	}
}

func TestPushApproveUnknownKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.PushApprove(context.Background(), PushApproveInput{
		VaultPath: "fake.duo", Password: "pw", Name: "nope",
	})
	if !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPasswordChange(t *testing.T) {
	f := newFixture(t)

	if err := f.uc.PasswordChange(context.Background(), PasswordChangeInput{
		VaultPath: "fake.duo", Password: "old", NewPassword: "new",
	}); err != nil {
		t.Fatalf("PasswordChange failed: %v", err)
	}
	if f.store.newPwd != "new" {
		t.Fatalf("store saw new password %q", f.store.newPwd)
	}
	if !f.store.closed {
		t.Fatalf("store not closed")
	}
}

func TestVaultInit(t *testing.T) {
	f := newFixture(t)

	out, err := f.uc.VaultInit(context.Background(), VaultInitInput{
		VaultPath: "fake.duo", Password: "pw",
	})
	if err != nil {
		t.Fatalf("VaultInit failed: %v", err)
	}
	if !f.opener.created {
		t.Fatalf("Create was not called")
	}
	if out.Path != "fake.duo" {
		t.Fatalf("path = %q", out.Path)
	}
}

func TestOpenFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.opener.openErr = goerror.Wrap(nil, "wrong password", goerror.CodeAuthentication)

	_, err := f.uc.KeyList(context.Background(), KeyListInput{VaultPath: "fake.duo", Password: "pw"})
	if !errors.Is(err, goerror.ErrAuthentication) {
		t.Fatalf("got %v, want ErrAuthentication", err)
	}
}
