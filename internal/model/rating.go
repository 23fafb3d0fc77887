package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type ratingState uint8

const (
	ratingUnset ratingState = iota
	ratingNA
	ratingScore
)

// NotApplicableValue is the wire and storage sentinel for "not applicable".
const NotApplicableValue = -1.0

// MaxScore is the top of the 0–5 star scale.
const MaxScore = 5.0

// Rating is a tri-state rating: unrated (JSON null), not applicable (-1) or a
// score between 0 and 5 in half-star steps. The zero value is unrated.
//
// Unrated and not-applicable are different answers. A form treats -1 as
// answered and null as missing, so the two must never collapse into each
// other on any path (JSON, SQL, form population).
type Rating struct {
	state ratingState
	value float64
}

// Unrated returns a rating the user has not answered yet.
func Unrated() Rating { return Rating{} }

// NotApplicable returns the explicit N/A answer.
func NotApplicable() Rating { return Rating{state: ratingNA} }

// NewScore returns a numeric rating. v must lie in [0, 5] on a 0.5 grid.
func NewScore(v float64) (Rating, error) {
	if math.IsNaN(v) || v < 0 || v > MaxScore || math.Mod(v*2, 1) != 0 {
		return Rating{}, fmt.Errorf("model: rating %v is not between 0 and 5 in 0.5 steps", v)
	}
	return Rating{state: ratingScore, value: v}, nil
}

// MustScore is NewScore for constants and tests. It panics on invalid input.
func MustScore(v float64) Rating {
	r, err := NewScore(v)
	if err != nil {
		panic(err)
	}
	return r
}

// RatingFromNumber maps a wire number to a rating: -1 is N/A, anything else
// must be a valid score.
func RatingFromNumber(v float64) (Rating, error) {
	if v == NotApplicableValue {
		return NotApplicable(), nil
	}
	return NewScore(v)
}

// IsSet reports whether the user answered (a score or N/A).
func (r Rating) IsSet() bool { return r.state != ratingUnset }

// IsNotApplicable reports whether the answer is the N/A sentinel.
func (r Rating) IsNotApplicable() bool { return r.state == ratingNA }

// Points returns the numeric score. ok is false for unrated and N/A.
func (r Rating) Points() (v float64, ok bool) {
	if r.state != ratingScore {
		return 0, false
	}
	return r.value, true
}

// Number returns the wire form: nil when unrated, -1 for N/A, else the score.
func (r Rating) Number() *float64 {
	switch r.state {
	case ratingNA:
		v := NotApplicableValue
		return &v
	case ratingScore:
		v := r.value
		return &v
	default:
		return nil
	}
}

func (r Rating) String() string {
	switch r.state {
	case ratingNA:
		return "N/A"
	case ratingScore:
		return strconv.FormatFloat(r.value, 'f', -1, 64)
	default:
		return "unrated"
	}
}

func (r Rating) MarshalJSON() ([]byte, error) {
	n := r.Number()
	if n == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(*n, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts null, a number, or a quoted number (older clients
// posted form values as strings).
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Unrated()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("model: decoding rating: %w", err)
		}
		if s == "" {
			*r = Unrated()
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("model: decoding rating %q: %w", data, err)
	}
	parsed, err := RatingFromNumber(v)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores unrated as NULL, N/A as -1 and scores as REAL.
func (r Rating) Value() (driver.Value, error) {
	n := r.Number()
	if n == nil {
		return nil, nil
	}
	return *n, nil
}

func (r *Rating) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = Unrated()
		return nil
	case float64:
		parsed, err := RatingFromNumber(v)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	case int64:
		return r.Scan(float64(v))
	case []byte:
		return r.UnmarshalJSON(v)
	case string:
		return r.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("model: cannot scan %T into Rating", src)
	}
}
