package utils

import (
	"strings"
	"sync"
	"time"

	"github.com/scmhub/calendar"
)

// marketHours describes an exchange for symbols carrying a Yahoo suffix.
// Open and Close are minutes after local midnight, used only when
// scmhub/calendar has no calendar for the MIC.
type marketHours struct {
	MIC      string
	Timezone string
	Open     int
	Close    int
}

var defaultMarket = marketHours{"xnys", "America/New_York", 9*60 + 30, 16 * 60}

// Yahoo suffix to MIC code, see scmhub/calendar for supported MICs (ISO 10383)
var suffixMarkets = map[string]marketHours{
	".NS": {"xnse", "Asia/Kolkata", 9*60 + 15, 15*60 + 30},
	".BO": {"xbom", "Asia/Kolkata", 9*60 + 15, 15*60 + 30},
	".L":  {"xlon", "Europe/London", 8 * 60, 16*60 + 30},
	".PA": {"xpar", "Europe/Paris", 9 * 60, 17*60 + 30},
	".DE": {"xfra", "Europe/Berlin", 9 * 60, 17*60 + 30},
	".AS": {"xams", "Europe/Amsterdam", 9 * 60, 17*60 + 30},
	".BR": {"xbru", "Europe/Brussels", 9 * 60, 17*60 + 30},
	".MI": {"xmil", "Europe/Rome", 9 * 60, 17*60 + 30},
	".MC": {"xmad", "Europe/Madrid", 9 * 60, 17*60 + 30},
	".ST": {"xsto", "Europe/Stockholm", 9 * 60, 17*60 + 30},
	".CO": {"xcse", "Europe/Copenhagen", 9 * 60, 17 * 60},
	".HE": {"xhel", "Europe/Helsinki", 10 * 60, 18*60 + 30},
	".VI": {"xwbo", "Europe/Vienna", 9 * 60, 17*60 + 30},
	".SW": {"xswx", "Europe/Zurich", 9 * 60, 17*60 + 30},
	".TO": {"xtse", "America/Toronto", 9*60 + 30, 16 * 60},
	".V":  {"xtsx", "America/Toronto", 9*60 + 30, 16 * 60},
	".T":  {"xtks", "Asia/Tokyo", 9 * 60, 15 * 60},
	".HK": {"xhkg", "Asia/Hong_Kong", 9*60 + 30, 16 * 60},
	".AX": {"xasx", "Australia/Sydney", 10 * 60, 16 * 60},
	".KS": {"xkrx", "Asia/Seoul", 9 * 60, 15*60 + 30},
	".TW": {"xtai", "Asia/Taipei", 9 * 60, 13*60 + 30},
	".SS": {"xshg", "Asia/Shanghai", 9*60 + 30, 15 * 60},
	".SZ": {"xshe", "Asia/Shanghai", 9*60 + 30, 15 * 60},
}

// Indices have no suffix, so they are mapped by name
var indexMarkets = map[string]string{
	"^NSEI":    ".NS",
	"^NSEBANK": ".NS",
	"^BSESN":   ".BO",
	"^FTSE":    ".L",
	"^FCHI":    ".PA",
	"^GDAXI":   ".DE",
	"^N225":    ".T",
	"^HSI":     ".HK",
}

// -----------------------------------------------------------------------------

// TradingCalendar calculates trading days using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location

	// AlwaysOpen marks round-the-clock instruments (crypto pairs).
	AlwaysOpen bool
	// Weekdays marks instruments trading all day Monday to Friday (FX).
	Weekdays bool

	hours marketHours
}

var (
	calendarCache   = make(map[string]*TradingCalendar)
	calendarCacheMu sync.Mutex
)

// -----------------------------------------------------------------------------

// MarketFor returns the market key a symbol trades on.
func MarketFor(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, "-USD"), strings.HasSuffix(symbol, "-USDT"):
		return "crypto"
	case strings.HasSuffix(symbol, "=X"):
		return "fx"
	}
	if suffix, ok := indexMarkets[strings.ToUpper(symbol)]; ok {
		return suffixMarkets[suffix].MIC
	}
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if m, ok := suffixMarkets[strings.ToUpper(symbol[i:])]; ok {
			return m.MIC
		}
	}
	return defaultMarket.MIC
}

// -----------------------------------------------------------------------------

// GetCalendar returns the shared calendar of the market symbol trades on.
func GetCalendar(symbol string) *TradingCalendar {
	key := MarketFor(symbol)

	calendarCacheMu.Lock()
	defer calendarCacheMu.Unlock()
	if tc, ok := calendarCache[key]; ok {
		return tc
	}

	tc := newTradingCalendar(key)
	calendarCache[key] = tc
	return tc
}

// -----------------------------------------------------------------------------

func newTradingCalendar(key string) *TradingCalendar {
	switch key {
	case "crypto":
		return &TradingCalendar{AlwaysOpen: true, Timezone: time.UTC}
	case "fx":
		return &TradingCalendar{Weekdays: true, Timezone: time.UTC}
	}

	hours := defaultMarket
	for _, m := range suffixMarkets {
		if m.MIC == key {
			hours = m
			break
		}
	}

	// scmhub/calendar.GetCalendar returns a calendar by MIC
	if cal := calendar.GetCalendar(hours.MIC); cal != nil {
		return &TradingCalendar{Calendar: cal, Timezone: cal.Loc, hours: hours}
	}

	loc, err := time.LoadLocation(hours.Timezone)
	if err != nil {
		loc = time.UTC // Worst case
	}
	return &TradingCalendar{Fallback: true, Timezone: loc, hours: hours}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.AlwaysOpen {
		return true
	}
	if tc.Fallback || tc.Weekdays {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	// Library handles IsHoliday / IsBusinessDay
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	switch {
	case tc.AlwaysOpen:
		return true
	case tc.Weekdays:
		return tc.IsTradingDay(t)
	case tc.Fallback:
		if !tc.IsTradingDay(t) {
			return false
		}
		minute := t.Hour()*60 + t.Minute()
		return minute >= tc.hours.Open && minute < tc.hours.Close
	}

	return tc.Calendar.IsOpen(t)
}
