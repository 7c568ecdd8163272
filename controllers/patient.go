package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicremind-backend/models"
	"clinicremind-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreatePatientInput defines the expected JSON structure for creating a patient
type CreatePatientInput struct {
	Name         string             `json:"name" binding:"required"`
	Phone        string             `json:"phone"`
	Appointments []AppointmentInput `json:"appointments"`
}

// UpdatePatientInput defines the expected JSON structure for updating a patient
type UpdatePatientInput struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type AppointmentInput struct {
	Timestamp     time.Time `json:"timestamp" binding:"required"`
	NotifyEnabled *bool     `json:"notifyEnabled"` // defaults to true
}

type UpdateAppointmentInput struct {
	NotifyEnabled *bool      `json:"notifyEnabled"`
	Timestamp     *time.Time `json:"timestamp"`
}

// PatientController manages patients and their appointment lists
type PatientController struct {
	DB          *gorm.DB
	CountryCode string
}

// CreatePatient creates a patient with an optional initial appointment list
func (pc *PatientController) CreatePatient(c *gin.Context) {
	var input CreatePatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if !pc.phoneAcceptable(input.Phone) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
		return
	}

	patient := models.Patient{
		Name:  strings.TrimSpace(input.Name),
		Phone: strings.TrimSpace(input.Phone),
	}
	for i, appointment := range input.Appointments {
		patient.Appointments = append(patient.Appointments, newAppointment(appointment, i))
	}

	if err := pc.DB.WithContext(c.Request.Context()).Create(&patient).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create patient")
		return
	}

	c.JSON(http.StatusCreated, patient)
}

// GetPatients retrieves all patients with their appointments
func (pc *PatientController) GetPatients(c *gin.Context) {
	var patients []models.Patient
	if err := pc.withAppointments(c).Order("created_at ASC, id ASC").Find(&patients).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve patients")
		return
	}

	c.JSON(http.StatusOK, patients)
}

// GetPatient retrieves a specific patient by ID
func (pc *PatientController) GetPatient(c *gin.Context) {
	patient, ok := pc.loadPatient(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patient)
}

// UpdatePatient updates name and phone
func (pc *PatientController) UpdatePatient(c *gin.Context) {
	var input UpdatePatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	patient, ok := pc.loadPatient(c, false)
	if !ok {
		return
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			utils.RespondWithError(c, http.StatusBadRequest, "Name must not be empty")
			return
		}
		patient.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		if !pc.phoneAcceptable(*input.Phone) {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
			return
		}
		patient.Phone = strings.TrimSpace(*input.Phone)
	}

	if err := pc.DB.WithContext(c.Request.Context()).Omit("Appointments").Save(&patient).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update patient")
		return
	}

	c.JSON(http.StatusOK, patient)
}

// DeletePatient soft deletes a patient
func (pc *PatientController) DeletePatient(c *gin.Context) {
	result := pc.DB.WithContext(c.Request.Context()).
		Where("id = ?", c.Param("id")).
		Delete(&models.Patient{})

	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete patient")
		return
	}

	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Patient not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Patient deleted successfully"})
}

// AddAppointment appends an appointment to the patient's list
func (pc *PatientController) AddAppointment(c *gin.Context) {
	var input AppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	patient, ok := pc.loadPatient(c, false)
	if !ok {
		return
	}

	db := pc.DB.WithContext(c.Request.Context())
	var next int64
	if err := db.Model(&models.Appointment{}).
		Where("patient_id = ?", patient.ID).
		Select("COALESCE(MAX(position) + 1, 0)").
		Scan(&next).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	appointment := newAppointment(input, int(next))
	appointment.PatientID = patient.ID
	if err := db.Create(&appointment).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create appointment")
		return
	}

	c.JSON(http.StatusCreated, appointment)
}

// UpdateAppointment toggles notifications or moves an appointment
func (pc *PatientController) UpdateAppointment(c *gin.Context) {
	var input UpdateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	appointmentID, err := strconv.ParseUint(c.Param("appointmentId"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid appointment ID format")
		return
	}

	db := pc.DB.WithContext(c.Request.Context())
	var appointment models.Appointment
	if err := db.Where("patient_id = ? AND id = ?", c.Param("id"), appointmentID).
		First(&appointment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Appointment not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if input.NotifyEnabled != nil {
		appointment.NotifyEnabled = *input.NotifyEnabled
	}
	if input.Timestamp != nil {
		appointment.Timestamp = input.Timestamp.UTC()
	}

	if err := db.Save(&appointment).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update appointment")
		return
	}

	c.JSON(http.StatusOK, appointment)
}

func (pc *PatientController) loadPatient(c *gin.Context, preload bool) (models.Patient, bool) {
	query := pc.DB.WithContext(c.Request.Context())
	if preload {
		query = pc.withAppointments(c)
	}

	var patient models.Patient
	if err := query.Where("id = ?", c.Param("id")).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Patient not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return models.Patient{}, false
	}
	return patient, true
}

func (pc *PatientController) withAppointments(c *gin.Context) *gorm.DB {
	return pc.DB.WithContext(c.Request.Context()).
		Preload("Appointments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
}

// An empty phone is allowed; such patients are never reminded.
func (pc *PatientController) phoneAcceptable(phone string) bool {
	if !utils.HasPhone(phone) {
		return true
	}
	_, err := utils.NormalizePhone(phone, pc.CountryCode)
	return err == nil
}

func newAppointment(input AppointmentInput, position int) models.Appointment {
	notify := true
	if input.NotifyEnabled != nil {
		notify = *input.NotifyEnabled
	}
	return models.Appointment{
		Position:      position,
		Timestamp:     input.Timestamp.UTC(),
		NotifyEnabled: notify,
	}
}
