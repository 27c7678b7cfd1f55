// Package datefmt renders appointment instants as human-readable,
// locale-specific strings for notifications and emails.
package datefmt

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

type Locale struct {
	Tag    language.Tag
	Months [12]string

	// SlotLayout receives day, month name, hour and minute.
	SlotLayout string
	// NewBookingLayout receives the requester's name and the rendered slot.
	NewBookingLayout string

	CancellationSubject string
}

var (
	PortugueseBR = Locale{
		Tag:                 language.BrazilianPortuguese,
		Months:              [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"},
		SlotLayout:          "dia %02d de %s, às %d:%02dh",
		NewBookingLayout:    "Novo agendamento de %s para %s",
		CancellationSubject: "Agendamento Cancelado",
	}
	English = Locale{
		Tag:                 language.AmericanEnglish,
		Months:              [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		SlotLayout:          "day %02d of %s, at %d:%02dh",
		NewBookingLayout:    "New appointment from %s for %s",
		CancellationSubject: "Appointment canceled",
	}
)

var supported = []Locale{PortugueseBR, English}

var matcher = language.NewMatcher([]language.Tag{PortugueseBR.Tag, English.Tag})

// LocaleFor picks the supported locale closest to the BCP 47 tag.
func LocaleFor(tag string) (Locale, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return PortugueseBR, nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	_, idx, conf := matcher.Match(parsed)
	if conf == language.No {
		return Locale{}, fmt.Errorf("unsupported locale %q", tag)
	}
	return supported[idx], nil
}

// Formatter renders instants in Location using Locale.
type Formatter struct {
	Locale   Locale
	Location *time.Location
}

func New(locale Locale, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{Locale: locale, Location: loc}
}

func (f Formatter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Slot renders t, e.g. "dia 01 de Mai, às 14:00h".
func (f Formatter) Slot(t time.Time) string {
	t = t.In(f.location())
	return fmt.Sprintf(f.Locale.SlotLayout, t.Day(), f.Locale.Months[t.Month()-1], t.Hour(), t.Minute())
}

func (f Formatter) NewBooking(requesterName string, slot time.Time) string {
	return fmt.Sprintf(f.Locale.NewBookingLayout, requesterName, f.Slot(slot))
}

func (f Formatter) CancellationSubject() string {
	return f.Locale.CancellationSubject
}

// In returns t in the formatter's location.
func (f Formatter) In(t time.Time) time.Time {
	return t.In(f.location())
}
