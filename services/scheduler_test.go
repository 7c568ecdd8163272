package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinicremind-backend/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSchedulerRejectsInvalidSpec(t *testing.T) {
	service := newTestService(t, serviceOptions{source: &fakeSource{}, ledger: newFakeLedger(), gateway: &fakeGateway{}})

	if _, err := service.StartScheduler(context.Background(), "every now and then"); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestStartSchedulerRunsReminderCycle(t *testing.T) {
	sent := make(chan string, 1)
	gateway := &fakeGateway{onSend: func(to string) {
		select {
		case sent <- to:
		default:
		}
	}}
	source := &fakeSource{patients: []models.Patient{
		patientWith("patient-1", "Ana", "0722111222", appointmentAt(testNow.Add(4*time.Hour), true)),
	}}
	service := newTestService(t, serviceOptions{source: source, ledger: newFakeLedger(), gateway: gateway})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler, err := service.StartScheduler(ctx, "@every 1s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { <-scheduler.Stop().Done() }()

	select {
	case to := <-sent:
		if to != "+40722111222" {
			t.Fatalf("unexpected recipient %q", to)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduler never ran")
	}
}

func TestRunScheduledLogsAbortedRun(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	service := newTestService(t, serviceOptions{
		source:  &fakeSource{err: errors.New("store unreachable")},
		ledger:  newFakeLedger(),
		gateway: &fakeGateway{},
		logger:  zap.New(core),
	})

	service.runScheduled(context.Background())

	if logs.FilterMessage("error checking appointments").Len() != 1 {
		t.Fatalf("expected scheduled failure to be logged, got %v", logs.All())
	}
}

func TestCronLoggerWritesErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewCronLogger(zap.New(core))

	logger.Info("wake", "now", "x")
	logger.Error(errors.New("bad"), "panic", "job", "reminders")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].LoggerName != "cron" {
		t.Fatalf("unexpected error entry: %+v", entries[1])
	}
}
