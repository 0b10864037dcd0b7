package seasonal

// LeapRule decides whether a calendar year has a 29-day February.
type LeapRule func(year int) bool

// IsLeapYear is the Gregorian rule.
func IsLeapYear(year int) bool {
	if year%4 != 0 {
		return false
	}
	if year%100 != 0 {
		return true
	}
	return year%400 == 0
}

// legacyLeapYears are the years the original CenSoc vignettes hardcode.
var legacyLeapYears = map[int]bool{1992: true, 1996: true, 2000: true, 2004: true}

// LegacyLeapYear reproduces the vignettes' literal leap-year list so output
// can be compared against previously published tables. It treats 1988 and
// every year outside 1992–2004 as common years.
func LegacyLeapYear(year int) bool {
	return legacyLeapYears[year]
}

// Rule names accepted by ParseLeapRule.
const (
	RuleGregorian = "gregorian"
	RuleLegacy    = "legacy"
)

// ParseLeapRule resolves a rule name. An empty name selects the Gregorian rule.
func ParseLeapRule(name string) (LeapRule, bool) {
	switch name {
	case "", RuleGregorian:
		return IsLeapYear, true
	case RuleLegacy:
		return LegacyLeapYear, true
	default:
		return nil, false
	}
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the length of month (1–12) in year under rule.
// It returns 0 for a month outside 1–12.
func DaysInMonth(year, month int, rule LeapRule) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && rule(year) {
		return 29
	}
	return monthDays[month-1]
}

// DaysInYear returns 366 for leap years under rule, else 365.
func DaysInYear(year int, rule LeapRule) int {
	if rule(year) {
		return 366
	}
	return 365
}

// DayFraction is the share of the year's days that fall in the month.
func DayFraction(year, month int, rule LeapRule) float64 {
	return float64(DaysInMonth(year, month, rule)) / float64(DaysInYear(year, rule))
}
