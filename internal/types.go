package internal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	ActionInsertSearchTracking = "insert_search_tracking"

	ActionInserted         = "inserted"
	ActionSkippedDuplicate = "skipped_duplicate"
)

// Header is the fixed column layout of the search tracking table. The last
// column is zero-prefixed on purpose so it sorts first in the sheet UI.
var Header = []string{
	"Timestamp Búsqueda", "ID", "Check-in", "Check-out", "Tipo de Día", "Noches", "Huéspedes",
	"Cliente ID", "Cliente Nombre", "Cliente Apellido", "Cliente Email", "Cliente Teléfono",
	"Propiedad ID", "Propiedad Nombre",
	"IP Address", "Session Key", "User Agent", "Referrer", "0Fecha de búsqueda",
}

const (
	ColSearchTimestamp = 0
	ColID              = 1
)

// Scalar is a loosely typed JSON leaf. Strings, numbers and booleans are kept
// in their textual form; null, empty strings, false and non-scalar values are
// treated as absent.
type Scalar struct {
	Value string
	Valid bool
}

func Str(v string) Scalar {
	return Scalar{Value: v, Valid: v != ""}
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	*s = Scalar{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		*s = Str(v)
	case 't':
		*s = Str("true")
	case 'n', 'f', '{', '[':
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return nil
		}
		*s = Str(n.String())
	}
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// Or resolves the scalar or returns fallback when absent.
func (s Scalar) Or(fallback string) string {
	if !s.Valid {
		return fallback
	}
	return s.Value
}

// Int resolves an integer-like scalar; decimals are truncated.
func (s Scalar) Int(fallback int) int {
	if !s.Valid {
		return fallback
	}
	v := strings.TrimSpace(s.Value)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return fallback
}

type ClientInfo struct {
	ID        Scalar `json:"id"`
	FirstName Scalar `json:"first_name"`
	LastName  Scalar `json:"last_name"`
	Email     Scalar `json:"email"`
	TelNumber Scalar `json:"tel_number"`
}

func (c *ClientInfo) UnmarshalJSON(b []byte) error {
	type plain ClientInfo
	return decodeSection(b, (*plain)(c))
}

type PropertyInfo struct {
	ID   Scalar `json:"id"`
	Name Scalar `json:"name"`
}

func (p *PropertyInfo) UnmarshalJSON(b []byte) error {
	type plain PropertyInfo
	return decodeSection(b, (*plain)(p))
}

type TechnicalData struct {
	IPAddress  Scalar `json:"ip_address"`
	SessionKey Scalar `json:"session_key"`
	UserAgent  Scalar `json:"user_agent"`
	Referrer   Scalar `json:"referrer"`
}

func (t *TechnicalData) UnmarshalJSON(b []byte) error {
	type plain TechnicalData
	return decodeSection(b, (*plain)(t))
}

// decodeSection fills v from a JSON object and leaves it zero for anything
// else, so a malformed nested section degrades to defaults.
func decodeSection(b []byte, v any) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	return json.Unmarshal(b, v)
}

type RawSearchRecord struct {
	ID              Scalar         `json:"id"`
	SearchTimestamp Scalar         `json:"search_timestamp"`
	CheckInDate     Scalar         `json:"check_in_date"`
	CheckOutDate    Scalar         `json:"check_out_date"`
	Guests          Scalar         `json:"guests"`
	ClientInfo      *ClientInfo    `json:"client_info"`
	PropertyInfo    *PropertyInfo  `json:"property_info"`
	TechnicalData   *TechnicalData `json:"technical_data"`
	Created         Scalar         `json:"created"`
}

func (r RawSearchRecord) Client() ClientInfo {
	if r.ClientInfo == nil {
		return ClientInfo{}
	}
	return *r.ClientInfo
}

func (r RawSearchRecord) Property() PropertyInfo {
	if r.PropertyInfo == nil {
		return PropertyInfo{}
	}
	return *r.PropertyInfo
}

func (r RawSearchRecord) Technical() TechnicalData {
	if r.TechnicalData == nil {
		return TechnicalData{}
	}
	return *r.TechnicalData
}

// NormalizedRow is one display-ready table row. Field order matches Header.
type NormalizedRow struct {
	SearchTimestamp string
	ID              string
	CheckIn         string
	CheckOut        string
	DayType         string
	Nights          int
	Guests          int
	ClientID        string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	PropertyID      string
	PropertyName    string
	IPAddress       string
	SessionKey      string
	UserAgent       string
	Referrer        string
	Created         string
}

// Cells returns the row in Header order, keeping numeric columns numeric.
func (r NormalizedRow) Cells() []any {
	return []any{
		r.SearchTimestamp, r.ID, r.CheckIn, r.CheckOut, r.DayType, r.Nights, r.Guests,
		r.ClientID, r.FirstName, r.LastName, r.Email, r.Phone,
		r.PropertyID, r.PropertyName,
		r.IPAddress, r.SessionKey, r.UserAgent, r.Referrer, r.Created,
	}
}

func (r NormalizedRow) Strings() []string {
	cells := r.Cells()
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		}
	}
	return out
}

type ProcessingSummary struct {
	RecordsProcessed int `json:"records_processed"`
	RecordsSkipped   int `json:"records_skipped"`
	TotalRecords     int `json:"total_records"`
}

type SingleInsertResult struct {
	RecordID string `json:"record_id"`
	Action   string `json:"action"`
}

// BatchRequest is the inbound webhook envelope. Data is kept raw so its
// shape can be checked before decoding.
type BatchRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}
