package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intellicog/records/internal/dbtest"
	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/metrics"
	"github.com/intellicog/records/pkg/tokens"
)

type sentMail struct {
	Kind      string
	To        string
	Code      string
	PatientID uint
	PDF       []byte
	Subject   string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) record(s sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, s)
	return nil
}

func (m *fakeMailer) SendRecoveryCode(_ context.Context, to, _, code string, _ time.Duration) error {
	return m.record(sentMail{Kind: "recovery", To: to, Code: code})
}

func (m *fakeMailer) SendReport(_ context.Context, to string, patientID uint, pdf []byte) error {
	return m.record(sentMail{Kind: "report", To: to, PatientID: patientID, PDF: pdf})
}

func (m *fakeMailer) SendSupport(_ context.Context, replyTo, _, subject, _ string) error {
	return m.record(sentMail{Kind: "support", To: replyTo, Subject: subject})
}

func (m *fakeMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (b *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[key] = data
	return "http://blobs.test/" + key, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[uint]models.Patient
	removed []uint
	hits    []uint
	err     error
}

func (x *fakeIndex) Index(_ context.Context, p models.Patient) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.docs == nil {
		x.docs = map[uint]models.Patient{}
	}
	x.docs[p.ID] = p
	return nil
}

func (x *fakeIndex) Remove(_ context.Context, id uint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.docs, id)
	x.removed = append(x.removed, id)
	return nil
}

func (x *fakeIndex) Search(context.Context, uint, string, int) ([]uint, error) {
	return x.hits, x.err
}

type env struct {
	repo   *repo.GormRepo
	mail   *fakeMailer
	blobs  *fakeBlobs
	pub    *fakePublisher
	index  *fakeIndex
	authz  *Authorizer
	auth   *AuthService
	users  *UserService
	pats   *PatientService
	evals  *EvaluationService
	tokens *tokens.Codec
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	r := &repo.GormRepo{DB: db}
	e := &env{
		repo:   r,
		mail:   &fakeMailer{},
		blobs:  &fakeBlobs{},
		pub:    &fakePublisher{},
		index:  &fakeIndex{},
		tokens: tokens.NewCodec([]byte("access-secret"), []byte("refresh-secret")),
	}
	e.authz = &Authorizer{Repo: r}
	e.auth = &AuthService{
		Repo:         r,
		Sessions:     &repo.RefreshStore{DB: db, TTL: 3 * time.Hour},
		Tokens:       e.tokens,
		Mailer:       e.mail,
		Events:       e.pub,
		Metrics:      metrics.New(),
		AccessTTL:    30 * time.Minute,
		RecoveryTTL:  10 * time.Minute,
		ResetCodeTTL: 15 * time.Minute,
	}
	e.users = &UserService{Repo: r, Blobs: e.blobs, Mailer: e.mail, Events: e.pub, Index: e.index}
	e.pats = &PatientService{Repo: r, Blobs: e.blobs, Events: e.pub, Index: e.index}
	e.evals = &EvaluationService{Repo: r, Blobs: e.blobs, Mailer: e.mail, Events: e.pub}
	return e
}

func (e *env) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), transport.RegisterRequest{
		Name:           "Ana",
		LastName:       "Lopez",
		Email:          email,
		Password:       password,
		VerifyPassword: password,
	})
	require.NoError(t, err)
	return u
}

func (e *env) patient(t *testing.T, userID uint, dni string) *AuthorizedPatient {
	t.Helper()
	ctx := context.Background()
	p, err := e.pats.Create(ctx, userID, transport.CreatePatientRequest{
		DNI:      dni,
		Name:     "Maria",
		LastName: "Gomez",
		Sex:      models.SexFemale,
	})
	require.NoError(t, err)
	ap, err := e.authz.Patient(ctx, userID, p.ID)
	require.NoError(t, err)
	return ap
}

func (e *env) evaluation(t *testing.T, ap *AuthorizedPatient, modality models.Modality) *AuthorizedEvaluation {
	t.Helper()
	ctx := context.Background()
	ev, err := e.evals.Create(ctx, ap, transport.CreateEvaluationRequest{Modality: modality})
	require.NoError(t, err)
	ae, err := e.authz.Evaluation(ctx, ap.UserID(), ev.ID)
	require.NoError(t, err)
	return ae
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
