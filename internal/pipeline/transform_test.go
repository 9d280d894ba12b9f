package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchtrack/internal"
	"searchtrack/internal/util"
)

func decodeRecord(t *testing.T, raw string) internal.RawSearchRecord {
	t.Helper()
	var rec internal.RawSearchRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func newTransformer() *Transformer {
	return NewTransformer(util.NewDateNormalizer("America/Lima"), "example.com")
}

const fullRecord = `{
  "id": "test-123",
  "search_timestamp": "2025-01-15T14:30:00Z",
  "check_in_date": "2025-01-15",
  "check_out_date": "2025-01-17",
  "guests": 2,
  "client_info": {"id": "client-456", "first_name": "Juan", "last_name": "Pérez", "email": "juan@example.com", "tel_number": "+51999888777"},
  "property_info": {"id": "prop-789", "name": "Villa Test"},
  "technical_data": {"ip_address": "192.168.1.1", "session_key": "test-session", "user_agent": "Mozilla/5.0 Test", "referrer": "https://test.com"},
  "created": "2025-01-15T14:30:00Z"
}`

func TestTransformFullRecord(t *testing.T) {
	row := newTransformer().Transform(decodeRecord(t, fullRecord))

	assert.Equal(t, internal.NormalizedRow{
		SearchTimestamp: "15/01/2025 09:30:00",
		ID:              "test-123",
		CheckIn:         "15/01/2025",
		CheckOut:        "17/01/2025",
		DayType:         DayTypeWeekday,
		Nights:          2,
		Guests:          2,
		ClientID:        "client-456",
		FirstName:       "Juan",
		LastName:        "Pérez",
		Email:           "juan@example.com",
		Phone:           "+51999888777",
		PropertyID:      "prop-789",
		PropertyName:    "Villa Test",
		IPAddress:       "192.168.1.1",
		SessionKey:      "test-session",
		UserAgent:       "Mozilla/5.0 Test",
		Referrer:        "https://test.com",
		Created:         "15/01/2025",
	}, row)
	assert.Len(t, row.Cells(), len(internal.Header))
}

func TestTransformOnlyIDUsesDefaults(t *testing.T) {
	row := newTransformer().Transform(decodeRecord(t, `{"id": "only-id"}`))

	assert.Equal(t, internal.NormalizedRow{
		SearchTimestamp: util.NoDate,
		ID:              "only-id",
		CheckIn:         util.NoDate,
		CheckOut:        util.NoDate,
		DayType:         util.NoDate,
		Nights:          0,
		Guests:          0,
		ClientID:        DefaultClientID,
		FirstName:       DefaultFirstName,
		LastName:        DefaultLastName,
		Email:           "anonimo@example.com",
		Phone:           DefaultPhone,
		PropertyID:      DefaultPropertyID,
		PropertyName:    DefaultPropertyName,
		IPAddress:       DefaultIP,
		SessionKey:      DefaultSessionKey,
		UserAgent:       DefaultUserAgent,
		Referrer:        DefaultReferrer,
		Created:         util.NoDate,
	}, row)
}

func TestTransformToleratesLooseInput(t *testing.T) {
	rec := decodeRecord(t, `{
	  "id": null,
	  "guests": "4",
	  "client_info": "not an object",
	  "property_info": {"id": 12, "name": ""},
	  "technical_data": null,
	  "check_in_date": "whenever"
	}`)
	row := newTransformer().Transform(rec)

	assert.Equal(t, DefaultID, row.ID)
	assert.Equal(t, 4, row.Guests)
	assert.Equal(t, DefaultFirstName, row.FirstName)
	assert.Equal(t, "12", row.PropertyID)
	assert.Equal(t, DefaultPropertyName, row.PropertyName)
	assert.Equal(t, DefaultReferrer, row.Referrer)
	assert.Equal(t, "whenever", row.CheckIn)
	assert.Equal(t, util.NoDate, row.DayType)
}

func TestDayType(t *testing.T) {
	tr := newTransformer()
	cases := []struct {
		name    string
		checkIn internal.Scalar
		want    string
	}{
		{name: "thursday", checkIn: internal.Str("2025-01-16"), want: DayTypeWeekday},
		{name: "friday", checkIn: internal.Str("2025-01-17"), want: DayTypeWeekend},
		{name: "saturday", checkIn: internal.Str("2025-01-18"), want: DayTypeWeekend},
		{name: "sunday", checkIn: internal.Str("2025-01-19"), want: DayTypeWeekday},
		{name: "monday", checkIn: internal.Str("2025-01-20"), want: DayTypeWeekday},
		{name: "absent", checkIn: internal.Scalar{}, want: util.NoDate},
		{name: "utc saturday early is friday locally", checkIn: internal.Str("2025-01-18T03:00:00Z"), want: DayTypeWeekend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tr.DayType(tc.checkIn))
		})
	}
}

func TestNights(t *testing.T) {
	tr := newTransformer()
	cases := []struct {
		name     string
		in, out  internal.Scalar
		expected int
	}{
		{name: "two nights", in: internal.Str("2025-01-15"), out: internal.Str("2025-01-17"), expected: 2},
		{name: "same day", in: internal.Str("2025-01-15"), out: internal.Str("2025-01-15"), expected: 0},
		{name: "reversed floors at zero", in: internal.Str("2025-01-17"), out: internal.Str("2025-01-15"), expected: 0},
		{name: "across month", in: internal.Str("2025-01-30"), out: internal.Str("2025-02-02"), expected: 3},
		{name: "missing checkout", in: internal.Str("2025-01-15"), out: internal.Scalar{}, expected: 0},
		{name: "garbage", in: internal.Str("soon"), out: internal.Str("2025-01-15"), expected: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tr.Nights(tc.in, tc.out))
		})
	}
}
