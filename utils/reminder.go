package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	LocaleRomanian = "ro-RO"
	LocaleEnglish  = "en-US"

	PlaceholderPatientName     = "[PatientName]"
	PlaceholderAppointmentTime = "[AppointmentTime]"

	DefaultReminderTemplate = "Bună [PatientName]! Vă reamintim că aveți o programare pe data de [AppointmentTime]. Vă așteptăm!"
)

var localeLayouts = map[string]string{
	LocaleRomanian: "02.01.2006, 15:04",
	LocaleEnglish:  "01/02/2006, 03:04 PM",
}

// SupportedLocale reports whether locale has a time layout.
func SupportedLocale(locale string) bool {
	_, ok := localeLayouts[locale]
	return ok
}

// ReminderFormatter renders reminder texts and canonical phone numbers for one
// civil zone and locale.
type ReminderFormatter struct {
	Template    string
	Location    *time.Location
	Locale      string
	CountryCode string
}

func NewReminderFormatter(template string, loc *time.Location, locale, countryCode string) (*ReminderFormatter, error) {
	if loc == nil {
		return nil, fmt.Errorf("reminder location is required")
	}
	if !SupportedLocale(locale) {
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}
	if !ValidCountryCode(countryCode) {
		return nil, fmt.Errorf("invalid country code %q", countryCode)
	}
	if strings.TrimSpace(template) == "" {
		template = DefaultReminderTemplate
	}
	return &ReminderFormatter{
		Template:    template,
		Location:    loc,
		Locale:      locale,
		CountryCode: countryCode,
	}, nil
}

func (f *ReminderFormatter) NormalizePhone(raw string) (string, error) {
	return NormalizePhone(raw, f.CountryCode)
}

// FormatTime renders t in the formatter's zone using the locale layout.
func (f *ReminderFormatter) FormatTime(t time.Time) string {
	return t.In(f.Location).Format(localeLayouts[f.Locale])
}

// Render fills the template's placeholders.
func (f *ReminderFormatter) Render(patientName string, appointment time.Time) string {
	message := strings.ReplaceAll(f.Template, PlaceholderPatientName, patientName)
	return strings.ReplaceAll(message, PlaceholderAppointmentTime, f.FormatTime(appointment))
}
