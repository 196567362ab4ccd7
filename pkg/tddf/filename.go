package tddf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// RolloverSlot is the scheduled slot token reserved for midnight of the next day
	RolloverSlot = "2400"

	// RolloverSlotLabel is the display label of RolloverSlot
	RolloverSlotLabel = "24:00 next-day"
)

var (
	ErrNoMatch             = errors.New("No matching pattern found")
	ErrInvalidDate         = errors.New("Invalid date format")
	ErrInvalidActualFormat = errors.New("Invalid actual time format")
	ErrInvalidActualValues = errors.New("Invalid actual time values")
	ErrInvalidScheduled    = errors.New("Invalid scheduled time")
	ErrUnknown             = errors.New("Unknown parsing error")
)

// filenamePattern matches _SSSS_MMDDYYYY_HHMMSS, where SSSS is 3 or 4 digits.
// When a name holds several such sequences the leftmost one wins.
var filenamePattern = regexp.MustCompile(`_(\d{3,4})_(\d{8})_(\d{6})`)

// ParsedTimestamps is the decoded scheduling metadata of a TDDF filename.
// Optional fields are nil when ParseSuccess is false.
type ParsedTimestamps struct {
	ScheduledDateTime      *time.Time `json:"scheduledDateTime"`
	ActualDateTime         *time.Time `json:"actualDateTime"`
	ProcessingDelaySeconds *int64     `json:"processingDelaySeconds"`
	ParseSuccess           bool       `json:"parseSuccess"`
	ErrorMessage           *string    `json:"errorMessage,omitempty"`
	ScheduledSlotRaw       *string    `json:"scheduledSlotRaw"`
	ScheduledSlotLabel     *string    `json:"scheduledSlotLabel"`
	SlotDayOffset          int        `json:"slotDayOffset"`

	err error
}

// Err returns the error behind a failed parse, or nil on success
func (p ParsedTimestamps) Err() error {
	return p.err
}

// Parse decodes the scheduled slot, embedded date and actual processing time
// from a TDDF filename. Timestamps are built in UTC.
func Parse(filename string) ParsedTimestamps {
	return ParseInLocation(filename, time.UTC)
}

// ParseInLocation is like Parse but builds the timestamps in loc.
// A nil loc means UTC.
//
// It never panics: every failure, expected or not, is reported through
// ParseSuccess and ErrorMessage with all other fields left empty.
func ParseInLocation(filename string, loc *time.Location) (result ParsedTimestamps) {
	if loc == nil {
		loc = time.UTC
	}

	defer func() {
		if r := recover(); r != nil {
			result = failure(recoveredError(r))
		}
	}()

	parsed, err := parse(filename, loc)
	if err != nil {
		return failure(err)
	}
	return parsed
}

func parse(filename string, loc *time.Location) (ParsedTimestamps, error) {
	match := filenamePattern.FindStringSubmatch(filename)
	if match == nil {
		return ParsedTimestamps{}, ErrNoMatch
	}
	slotRaw, dateRaw, actualRaw := match[1], match[2], match[3]

	date, err := parseDate(dateRaw, loc)
	if err != nil {
		return ParsedTimestamps{}, err
	}

	hour, minute, second, err := parseActualTime(actualRaw)
	if err != nil {
		return ParsedTimestamps{}, err
	}

	var (
		scheduled time.Time
		actual    time.Time
		label     string
		offset    int
	)

	if slotRaw == RolloverSlot {
		// Both timestamps move to the next day so they stay aligned with the slot.
		next := date.AddDate(0, 0, 1)
		offset = 1
		label = RolloverSlotLabel
		scheduled = next
		actual = atTime(next, hour, minute, second)
	} else {
		slotHour, slotMinute, err := parseSlot(slotRaw)
		if err != nil {
			return ParsedTimestamps{}, err
		}
		label = fmt.Sprintf("%02d:%02d", slotHour, slotMinute)
		scheduled = atTime(date, slotHour, slotMinute, 0)
		actual = atTime(date, hour, minute, second)
	}

	delay := int64(math.Round(float64(actual.UnixMilli()-scheduled.UnixMilli()) / 1000))

	return ParsedTimestamps{
		ScheduledDateTime:      &scheduled,
		ActualDateTime:         &actual,
		ProcessingDelaySeconds: &delay,
		ParseSuccess:           true,
		ScheduledSlotRaw:       &slotRaw,
		ScheduledSlotLabel:     &label,
		SlotDayOffset:          offset,
	}, nil
}

// parseDate reads MMDDYYYY and rejects anything time.Date would normalize
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	month, _ := strconv.Atoi(raw[0:2])
	day, _ := strconv.Atoi(raw[2:4])
	year, _ := strconv.Atoi(raw[4:8])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func parseActualTime(raw string) (hour, minute, second int, err error) {
	if len(raw) != 6 {
		return 0, 0, 0, ErrInvalidActualFormat
	}

	hour, _ = strconv.Atoi(raw[0:2])
	minute, _ = strconv.Atoi(raw[2:4])
	second, _ = strconv.Atoi(raw[4:6])

	if hour > 23 || minute > 59 || second > 59 {
		return 0, 0, 0, ErrInvalidActualValues
	}
	return hour, minute, second, nil
}

// parseSlot left-pads a 3 digit token to HHMM
func parseSlot(raw string) (hour, minute int, err error) {
	padded := strings.Repeat("0", 4-len(raw)) + raw

	hour, _ = strconv.Atoi(padded[0:2])
	minute, _ = strconv.Atoi(padded[2:4])

	if hour > 23 || minute > 59 {
		return 0, 0, ErrInvalidScheduled
	}
	return hour, minute, nil
}

func atTime(day time.Time, hour, minute, second int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, day.Location())
}

func failure(err error) ParsedTimestamps {
	msg := err.Error()
	return ParsedTimestamps{
		ParseSuccess: false,
		ErrorMessage: &msg,
		err:          err,
	}
}

func recoveredError(r any) error {
	switch v := r.(type) {
	case error:
		if v.Error() != "" {
			return v
		}
	case string:
		if v != "" {
			return errors.New(v)
		}
	case fmt.Stringer:
		if s := v.String(); s != "" {
			return errors.New(s)
		}
	}
	return ErrUnknown
}
