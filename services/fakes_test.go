package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinicremind-backend/models"
	"clinicremind-backend/utils"

	"go.uber.org/zap"
)

const testSender = "+15550001111"

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu       sync.Mutex
	patients []models.Patient
	err      error
	calls    int
}

func (f *fakeSource) ListPatients(ctx context.Context) ([]models.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.patients, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	records   map[string]models.NotificationRecord
	lookupErr error
	saveErr   error
	savePanic bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]models.NotificationRecord{}}
}

func (f *fakeLedger) HasNotification(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	_, ok := f.records[key]
	return ok, nil
}

func (f *fakeLedger) SaveNotification(ctx context.Context, record *models.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.savePanic {
		panic("ledger write exploded")
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records[record.Key] = *record
	return nil
}

func (f *fakeLedger) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[key]
	return ok
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type sentMessage struct {
	From string
	To   string
	Body string
}

type fakeGateway struct {
	mu            sync.Mutex
	sent          []sentMessage
	failFor       map[string]error
	notConfigured bool
	onSend        func(to string)
}

func (f *fakeGateway) CheckConfigured() error {
	if f.notConfigured {
		return ErrGatewayNotConfigured
	}
	return nil
}

func (f *fakeGateway) Send(ctx context.Context, from, to, body string) (string, error) {
	if f.onSend != nil {
		f.onSend(to)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[to]; ok {
		return "", err
	}
	f.sent = append(f.sent, sentMessage{From: from, To: to, Body: body})
	return "SM" + to, nil
}

func (f *fakeGateway) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

var errGatewayDown = errors.New("twilio: 503 service unavailable")

func mustBucharest(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

type serviceOptions struct {
	source  PatientSource
	ledger  NotificationLedger
	gateway SMSGateway
	metrics MetricsSink
	logger  *zap.Logger
	sender  string
	limit   int
}

func newTestService(t *testing.T, opts serviceOptions) *ReminderService {
	t.Helper()
	loc := mustBucharest(t)
	formatter, err := utils.NewReminderFormatter("", loc, utils.LocaleRomanian, "+40")
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	sender := opts.sender
	if sender == "" {
		sender = testSender
	}
	service, err := NewReminderService(ReminderServiceConfig{
		Patients:  opts.source,
		Ledger:    opts.ledger,
		Gateway:   opts.gateway,
		Formatter: formatter,
		Settings: ReminderSettings{
			Location:       loc,
			Lookahead:      4 * time.Hour,
			Tolerance:      7*time.Minute + 30*time.Second,
			WindowMode:     utils.WindowModeOffset,
			SenderAddress:  sender,
			RunTimeout:     time.Minute,
			MaxConcurrency: opts.limit,
		},
		Metrics: opts.metrics,
		Logger:  opts.logger,
		Clock:   func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func patientWith(id, name, phone string, appointments ...models.Appointment) models.Patient {
	return models.Patient{ID: id, Name: name, Phone: phone, Appointments: appointments}
}

func appointmentAt(at time.Time, notify bool) models.Appointment {
	return models.Appointment{Timestamp: at, NotifyEnabled: notify}
}
