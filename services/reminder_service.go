package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"clinicremind-backend/models"
	"clinicremind-backend/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSenderNotConfigured = errors.New("sms sender not configured; set TWILIO_SMS_FROM")
	ErrRunInProgress       = errors.New("reminder run already in progress")
)

// Failure reasons reported per candidate.
const (
	ReasonInvalidPhone = "invalid phone number"
	ReasonSendFailed   = "send failed"
	ReasonDedupLookup  = "dedup lookup failed"
	ReasonInternal     = "internal error"
)

// ReminderSettings are the dispatch engine's fixed parameters.
type ReminderSettings struct {
	Location       *time.Location
	Lookahead      time.Duration
	Tolerance      time.Duration
	WindowMode     string
	SenderAddress  string
	RunTimeout     time.Duration
	MaxConcurrency int
}

type ReminderServiceConfig struct {
	Patients  PatientSource
	Ledger    NotificationLedger
	Gateway   SMSGateway
	Formatter *utils.ReminderFormatter
	Settings  ReminderSettings
	Metrics   MetricsSink
	Logger    *zap.Logger
	Clock     func() time.Time
}

// ReminderService scans appointments and sends one SMS reminder per
// appointment entering the look-ahead window.
type ReminderService struct {
	patients  PatientSource
	ledger    NotificationLedger
	gateway   SMSGateway
	formatter *utils.ReminderFormatter
	settings  ReminderSettings
	metrics   MetricsSink
	logger    *zap.Logger
	clock     func() time.Time

	running sync.Mutex
}

func NewReminderService(cfg ReminderServiceConfig) (*ReminderService, error) {
	if cfg.Patients == nil {
		return nil, errors.New("patient source is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("notification ledger is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("sms gateway is required")
	}
	if cfg.Formatter == nil {
		return nil, errors.New("reminder formatter is required")
	}
	if cfg.Settings.Location == nil {
		cfg.Settings.Location = cfg.Formatter.Location
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderService{
		patients:  cfg.Patients,
		ledger:    cfg.Ledger,
		gateway:   cfg.Gateway,
		formatter: cfg.Formatter,
		settings:  cfg.Settings,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
	}, nil
}

// Candidate is an appointment selected for a reminder during one run.
type Candidate struct {
	PatientID       string
	PatientName     string
	Phone           string
	AppointmentTime time.Time
}

// Key is the candidate's idempotency key.
func (c Candidate) Key() string {
	return NotificationKey(c.PatientID, c.AppointmentTime)
}

// NotificationKey derives the dedup key for a patient's appointment.
func NotificationKey(patientID string, appointment time.Time) string {
	return fmt.Sprintf("%s_%d", patientID, appointment.UnixMilli())
}

type Failure struct {
	PatientID       string    `json:"patientId"`
	PatientName     string    `json:"patientName"`
	Phone           string    `json:"phone"`
	AppointmentTime time.Time `json:"appointmentTime"`
	Reason          string    `json:"reason"`
	Error           string    `json:"error,omitempty"`
}

// Report aggregates the outcome of one run.
type Report struct {
	Window       utils.Window `json:"window"`
	Candidates   int          `json:"candidates"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Skipped      int          `json:"skipped"`
	Failures     []Failure    `json:"failures"`
}

// Run executes one scan-and-dispatch cycle. Errors returned here abort the
// whole run; per-candidate problems end up in the report.
func (s *ReminderService) Run(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	started := time.Now()
	report, err := s.run(ctx)
	s.metrics.RunCompleted(time.Since(started), err)
	if err != nil {
		s.logger.Error("reminder run aborted", zap.Error(err))
		return nil, err
	}

	s.logger.Info("reminder run completed",
		zap.Int("candidates", report.Candidates),
		zap.Int("successful", report.SuccessCount),
		zap.Int("failed", report.FailureCount),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", time.Since(started)))
	return report, nil
}

func (s *ReminderService) run(ctx context.Context) (*Report, error) {
	if err := s.gateway.CheckConfigured(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.settings.SenderAddress) == "" {
		return nil, ErrSenderNotConfigured
	}

	if s.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.RunTimeout)
		defer cancel()
	}

	window := utils.ComputeWindow(s.clock(), s.settings.Location,
		s.settings.Lookahead, s.settings.Tolerance, s.settings.WindowMode)
	s.logger.Info("checking appointments",
		zap.String("window_start", s.formatter.FormatTime(window.Start)),
		zap.String("window_end", s.formatter.FormatTime(window.End)),
		zap.String("timezone", s.settings.Location.String()))

	patients, err := s.patients.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	s.logger.Debug("patients loaded", zap.Int("count", len(patients)))

	candidates := ScanAppointments(patients, window)
	s.logger.Info("reminder candidates found", zap.Int("count", len(candidates)))

	report := s.dispatchAll(ctx, candidates)
	report.Window = window
	return &report, nil
}

// ScanAppointments flattens the patients' appointments into candidates, in
// patient order then appointment order. Appointments with notifications off,
// outside the window, or belonging to a patient without a phone are dropped.
func ScanAppointments(patients []models.Patient, window utils.Window) []Candidate {
	var candidates []Candidate
	for _, patient := range patients {
		if len(patient.Appointments) == 0 || !utils.HasPhone(patient.Phone) {
			continue
		}
		for _, appointment := range patient.Appointments {
			if !appointment.NotifyEnabled {
				continue
			}
			if !window.Contains(appointment.Timestamp) {
				continue
			}
			candidates = append(candidates, Candidate{
				PatientID:       patient.ID,
				PatientName:     patient.Name,
				Phone:           patient.Phone,
				AppointmentTime: appointment.Timestamp,
			})
		}
	}
	return candidates
}

type outcomeKind int

const (
	outcomeSent outcomeKind = iota
	outcomeFailed
	outcomeSkipped
)

type dispatchOutcome struct {
	kind    outcomeKind
	failure Failure
}

func (s *ReminderService) dispatchAll(ctx context.Context, candidates []Candidate) Report {
	outcomes := make([]dispatchOutcome, len(candidates))

	var g errgroup.Group
	if s.settings.MaxConcurrency > 0 {
		g.SetLimit(s.settings.MaxConcurrency)
	}
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			var delivered bool
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("reminder dispatch panicked",
						zap.String("patient_id", candidate.PatientID),
						zap.Bool("delivered", delivered),
						zap.Any("panic", r))
					if delivered {
						outcomes[i] = dispatchOutcome{kind: outcomeSent}
						return
					}
					outcomes[i] = failedOutcome(candidate, ReasonInternal, fmt.Errorf("panic: %v", r))
				}
			}()
			outcomes[i] = s.dispatch(ctx, candidate, &delivered)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Candidates: len(candidates), Failures: []Failure{}}
	for i, outcome := range outcomes {
		switch outcome.kind {
		case outcomeSent:
			report.SuccessCount++
			s.metrics.NotificationOutcome(OutcomeSent, "")
		case outcomeSkipped:
			report.Skipped++
			s.metrics.NotificationOutcome(OutcomeSkipped, "")
		case outcomeFailed:
			report.FailureCount++
			report.Failures = append(report.Failures, outcome.failure)
			s.metrics.NotificationOutcome(OutcomeFailed, outcome.failure.Reason)
			s.logger.Warn("notification failed",
				zap.Int("index", i+1),
				zap.String("patient_id", outcome.failure.PatientID),
				zap.String("reason", outcome.failure.Reason),
				zap.String("error", outcome.failure.Error))
		}
	}
	return report
}

// dispatch sets *delivered once the gateway has accepted the message.
func (s *ReminderService) dispatch(ctx context.Context, candidate Candidate, delivered *bool) dispatchOutcome {
	key := candidate.Key()
	logger := s.logger.With(zap.String("patient_id", candidate.PatientID), zap.String("key", key))

	alreadySent, err := s.ledger.HasNotification(ctx, key)
	if err != nil {
		return failedOutcome(candidate, ReasonDedupLookup, err)
	}
	if alreadySent {
		logger.Debug("notification already sent")
		return dispatchOutcome{kind: outcomeSkipped}
	}

	phone, err := s.formatter.NormalizePhone(candidate.Phone)
	if err != nil {
		return failedOutcome(candidate, ReasonInvalidPhone, fmt.Errorf("%w: %s", err, candidate.Phone))
	}

	message := s.formatter.Render(candidate.PatientName, candidate.AppointmentTime)

	sid, err := s.gateway.Send(ctx, s.settings.SenderAddress, phone, message)
	if err != nil {
		logger.Error("failed to send sms", zap.String("phone", phone), zap.Error(err))
		return failedOutcome(candidate, ReasonSendFailed, err)
	}
	*delivered = true
	logger.Info("sms sent", zap.String("phone", phone), zap.String("sid", sid))

	// The message is out; the marker must be written even if the run deadline hit.
	record := &models.NotificationRecord{
		Key:       key,
		SentAt:    s.clock().UTC(),
		PatientID: candidate.PatientID,
		Phone:     phone,
		Message:   message,
		Channel:   models.ChannelSMS,
	}
	if err := s.ledger.SaveNotification(context.WithoutCancel(ctx), record); err != nil {
		logger.Error("failed to mark notification as sent", zap.String("phone", phone), zap.Error(err))
		s.metrics.MarkerWriteFailed()
	}
	return dispatchOutcome{kind: outcomeSent}
}

func failedOutcome(candidate Candidate, reason string, err error) dispatchOutcome {
	failure := Failure{
		PatientID:       candidate.PatientID,
		PatientName:     candidate.PatientName,
		Phone:           candidate.Phone,
		AppointmentTime: candidate.AppointmentTime,
		Reason:          reason,
	}
	if err != nil {
		failure.Error = err.Error()
	}
	return dispatchOutcome{kind: outcomeFailed, failure: failure}
}
