package common

import (
	"fmt"
	"time"
)

// TradingWindow is a weekday trading session in an exchange's local time zone.
type TradingWindow struct {
	Location *time.Location
	OpenMin  int // minutes after local midnight
	CloseMin int // session ends at exactly this minute
}

// MustLoadLocation loads a time zone, falling back to a fixed offset when tzdata
// is unavailable (e.g. minimal container).
func MustLoadLocation(name string, fallbackOffset time.Duration) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, int(fallbackOffset.Seconds()))
	}
	return loc
}

// NewTradingWindow builds a window from "HH:MM" open/close strings.
func NewTradingWindow(loc *time.Location, open, close string) (TradingWindow, error) {
	o, err := parseClock(open)
	if err != nil {
		return TradingWindow{}, fmt.Errorf("invalid open time: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return TradingWindow{}, fmt.Errorf("invalid close time: %w", err)
	}
	if c <= o {
		return TradingWindow{}, fmt.Errorf("close %s is not after open %s", close, open)
	}
	return TradingWindow{Location: loc, OpenMin: o, CloseMin: c}, nil
}

// KRXTradingWindow is the domestic exchange session: Mon–Fri 09:00–15:30 Asia/Seoul.
func KRXTradingWindow() TradingWindow {
	return TradingWindow{
		Location: MustLoadLocation("Asia/Seoul", 9*time.Hour),
		OpenMin:  9 * 60,
		CloseMin: 15*60 + 30,
	}
}

// IsOpen returns true if t falls within the trading window, Monday–Friday.
func (w TradingWindow) IsOpen(t time.Time) bool {
	local := t.In(w.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour, min, sec := local.Clock()
	secondOfDay := hour*3600 + min*60 + sec
	return secondOfDay >= w.OpenMin*60 && secondOfDay <= w.CloseMin*60
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
