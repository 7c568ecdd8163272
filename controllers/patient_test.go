package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"clinicremind-backend/config"
	"clinicremind-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newPatientRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := config.ConnectDB("sqlite", filepath.Join(t.TempDir(), "patients.db"), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	gin.SetMode(gin.TestMode)
	pc := &PatientController{DB: db, CountryCode: "+40"}
	r := gin.New()
	r.POST("/patients", pc.CreatePatient)
	r.GET("/patients", pc.GetPatients)
	r.GET("/patients/:id", pc.GetPatient)
	r.PUT("/patients/:id", pc.UpdatePatient)
	r.DELETE("/patients/:id", pc.DeletePatient)
	r.POST("/patients/:id/appointments", pc.AddAppointment)
	r.PATCH("/patients/:id/appointments/:appointmentId", pc.UpdateAppointment)
	return r, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	request := httptest.NewRequest(method, path, &buf)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodePatient(t *testing.T, recorder *httptest.ResponseRecorder) models.Patient {
	t.Helper()
	var patient models.Patient
	if err := json.Unmarshal(recorder.Body.Bytes(), &patient); err != nil {
		t.Fatalf("decode: %v: %s", err, recorder.Body.String())
	}
	return patient
}

func TestCreatePatientWithAppointments(t *testing.T) {
	router, _ := newPatientRouter(t)
	first := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	notify := false

	recorder := doJSON(t, router, http.MethodPost, "/patients", gin.H{
		"name":  "Ana Popescu",
		"phone": "0722 123 456",
		"appointments": []gin.H{
			{"timestamp": first},
			{"timestamp": first.Add(24 * time.Hour), "notifyEnabled": notify},
		},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	created := decodePatient(t, recorder)
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	recorder = doJSON(t, router, http.MethodGet, "/patients/"+created.ID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	fetched := decodePatient(t, recorder)
	if len(fetched.Appointments) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(fetched.Appointments))
	}
	if !fetched.Appointments[0].NotifyEnabled || fetched.Appointments[1].NotifyEnabled {
		t.Fatalf("notify flags not persisted: %+v", fetched.Appointments)
	}
	if fetched.Appointments[0].Position != 0 || fetched.Appointments[1].Position != 1 {
		t.Fatalf("positions not persisted: %+v", fetched.Appointments)
	}
	if !fetched.Appointments[0].Timestamp.Equal(first) {
		t.Fatalf("timestamp %v, want %v", fetched.Appointments[0].Timestamp, first)
	}
}

func TestCreatePatientValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   gin.H
		status int
	}{
		{name: "missing-name", body: gin.H{"phone": "+40722123456"}, status: http.StatusBadRequest},
		{name: "invalid-phone", body: gin.H{"name": "Ion", "phone": "abc"}, status: http.StatusBadRequest},
		{name: "no-phone", body: gin.H{"name": "Ion"}, status: http.StatusCreated},
	}

	router, _ := newPatientRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doJSON(t, router, http.MethodPost, "/patients", tt.body)
			if recorder.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", recorder.Code, tt.status, recorder.Body.String())
			}
		})
	}
}

func TestAddAndUpdateAppointment(t *testing.T) {
	router, db := newPatientRouter(t)
	patient := models.Patient{Name: "Maria", Phone: "+40722000111", Appointments: []models.Appointment{
		{Position: 0, Timestamp: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC), NotifyEnabled: true},
	}}
	if err := db.Create(&patient).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	at := time.Date(2026, 10, 21, 9, 30, 0, 0, time.UTC)
	recorder := doJSON(t, router, http.MethodPost, "/patients/"+patient.ID+"/appointments", gin.H{"timestamp": at})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var added models.Appointment
	if err := json.Unmarshal(recorder.Body.Bytes(), &added); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if added.Position != 1 || !added.NotifyEnabled || added.PatientID != patient.ID {
		t.Fatalf("unexpected appointment: %+v", added)
	}

	path := "/patients/" + patient.ID + "/appointments/" + strconv.FormatUint(uint64(added.ID), 10)
	recorder = doJSON(t, router, http.MethodPatch, path, gin.H{"notifyEnabled": false})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var stored models.Appointment
	if err := db.First(&stored, added.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.NotifyEnabled {
		t.Fatalf("notifications should be disabled")
	}

	recorder = doJSON(t, router, http.MethodPatch, "/patients/"+patient.ID+"/appointments/999", gin.H{"notifyEnabled": true})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
}

func TestUpdateAndDeletePatient(t *testing.T) {
	router, db := newPatientRouter(t)
	patient := models.Patient{Name: "Elena", Phone: "+40722000222"}
	if err := db.Create(&patient).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	recorder := doJSON(t, router, http.MethodPut, "/patients/"+patient.ID, gin.H{"phone": "not-a-phone"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodPut, "/patients/"+patient.ID, gin.H{"name": "Elena Ionescu", "phone": ""})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	updated := decodePatient(t, recorder)
	if updated.Name != "Elena Ionescu" || updated.Phone != "" {
		t.Fatalf("unexpected patient: %+v", updated)
	}

	recorder = doJSON(t, router, http.MethodDelete, "/patients/"+patient.ID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	recorder = doJSON(t, router, http.MethodGet, "/patients/"+patient.ID, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("deleted patient should be hidden, got %d", recorder.Code)
	}
	recorder = doJSON(t, router, http.MethodDelete, "/patients/"+patient.ID, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("second delete should 404, got %d", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodGet, "/patients", nil)
	var patients []models.Patient
	if err := json.Unmarshal(recorder.Body.Bytes(), &patients); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(patients) != 0 {
		t.Fatalf("expected empty list, got %d", len(patients))
	}
}
