// Package market answers market-calendar questions for the two venues
// the trader operates on: the Korea Exchange and the US session.
//
// Both checks use real IANA zones so the US side tracks DST. The session
// windows are inclusive of both endpoints at whole-minute resolution.
package market

import "time"

var (
	// Seoul is the KRX trading zone; also defines the trading "day"
	// used for daily counters.
	Seoul *time.Location
	// NewYork is the US session zone.
	NewYork *time.Location
)

func init() {
	var err error
	Seoul, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		Seoul = time.FixedZone("KST", 9*3600)
	}
	NewYork, err = time.LoadLocation("America/New_York")
	if err != nil {
		NewYork = time.FixedZone("EST", -5*3600)
	}
}

// IsKROpen reports whether the KRX regular session is open: weekdays
// 09:00:00 through 15:30:00 KST.
func IsKROpen(now time.Time) bool {
	return inSession(now.In(Seoul), 9*60, 15*60+30)
}

// IsUSOpen reports whether the US regular session is open: weekdays
// 09:30:00 through 16:00:00 Eastern. Evaluating in the Eastern zone
// keeps the KST-side window correct across DST shifts.
func IsUSOpen(now time.Time) bool {
	return inSession(now.In(NewYork), 9*60+30, 16*60)
}

// inSession checks a weekday session window given in minutes since
// midnight. The closing minute is included only at exactly :00 seconds.
func inSession(t time.Time, openMin, closeMin int) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hm := t.Hour()*60 + t.Minute()
	if hm < openMin || hm > closeMin {
		return false
	}
	if hm == closeMin && (t.Second() > 0 || t.Nanosecond() > 0) {
		return false
	}
	return true
}

// TradingDay returns the KST calendar day of the instant, the key the
// daily trade counter and loss breaker reset on.
func TradingDay(now time.Time) string {
	return now.In(Seoul).Format("2006-01-02")
}
