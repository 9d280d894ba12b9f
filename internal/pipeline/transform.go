package pipeline

import (
	"math"
	"time"

	"searchtrack/internal"
	"searchtrack/internal/util"
)

const (
	DefaultID           = "Sin ID"
	DefaultClientID     = "ANONIMO"
	DefaultFirstName    = "Usuario"
	DefaultLastName     = "Anónimo"
	DefaultPhone        = "Sin teléfono"
	DefaultPropertyID   = "SIN_PROPIEDAD"
	DefaultPropertyName = "Búsqueda general"
	DefaultIP           = "Sin IP"
	DefaultSessionKey   = "Sin session key"
	DefaultUserAgent    = "Sin user agent"
	DefaultReferrer     = "Sin referrer"

	DayTypeWeekend = "Fin de semana"
	DayTypeWeekday = "Día de semana"
)

// Transformer maps raw search records to table rows. It is pure: every
// missing or unreadable field resolves to its default.
type Transformer struct {
	dates          *util.DateNormalizer
	anonymousEmail string
}

func NewTransformer(dates *util.DateNormalizer, anonEmailDomain string) *Transformer {
	if dates == nil {
		dates = util.NewDateNormalizer("America/Lima")
	}
	if anonEmailDomain == "" {
		anonEmailDomain = "example.com"
	}
	return &Transformer{dates: dates, anonymousEmail: "anonimo@" + anonEmailDomain}
}

func (t *Transformer) Transform(rec internal.RawSearchRecord) internal.NormalizedRow {
	client := rec.Client()
	property := rec.Property()
	tech := rec.Technical()

	return internal.NormalizedRow{
		SearchTimestamp: t.dates.FormatTimestamp(rec.SearchTimestamp.Value),
		ID:              rec.ID.Or(DefaultID),
		CheckIn:         t.dates.FormatDateOnly(rec.CheckInDate.Value),
		CheckOut:        t.dates.FormatDateOnly(rec.CheckOutDate.Value),
		DayType:         t.DayType(rec.CheckInDate),
		Nights:          t.Nights(rec.CheckInDate, rec.CheckOutDate),
		Guests:          rec.Guests.Int(0),
		ClientID:        client.ID.Or(DefaultClientID),
		FirstName:       client.FirstName.Or(DefaultFirstName),
		LastName:        client.LastName.Or(DefaultLastName),
		Email:           client.Email.Or(t.anonymousEmail),
		Phone:           client.TelNumber.Or(DefaultPhone),
		PropertyID:      property.ID.Or(DefaultPropertyID),
		PropertyName:    property.Name.Or(DefaultPropertyName),
		IPAddress:       tech.IPAddress.Or(DefaultIP),
		SessionKey:      tech.SessionKey.Or(DefaultSessionKey),
		UserAgent:       tech.UserAgent.Or(DefaultUserAgent),
		Referrer:        tech.Referrer.Or(DefaultReferrer),
		Created:         t.dates.FormatDateOnly(rec.Created.Value),
	}
}

// DayType buckets the check-in day: Friday and Saturday count as weekend.
func (t *Transformer) DayType(checkIn internal.Scalar) string {
	if !checkIn.Valid {
		return util.NoDate
	}
	day, ok := t.dates.CalendarDate(checkIn.Value)
	if !ok {
		return util.NoDate
	}
	switch day.Weekday() {
	case time.Friday, time.Saturday:
		return DayTypeWeekend
	default:
		return DayTypeWeekday
	}
}

// Nights is floor((check-out - check-in) / 1 day), never below zero. It is 0
// when either date is missing or unreadable.
func (t *Transformer) Nights(checkIn, checkOut internal.Scalar) int {
	if !checkIn.Valid || !checkOut.Valid {
		return 0
	}
	in, ok := t.dates.CalendarDate(checkIn.Value)
	if !ok {
		return 0
	}
	out, ok := t.dates.CalendarDate(checkOut.Value)
	if !ok {
		return 0
	}
	nights := int(math.Floor(out.Sub(in).Hours() / 24))
	if nights < 0 {
		return 0
	}
	return nights
}
