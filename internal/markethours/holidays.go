package markethours

import "time"

// NSE trading holidays for 2026, keyed "month-day".
// Source: NSE India official holiday list; tentative dates follow the
// published calendar and should be refreshed each year.
var nseHolidays2026 = map[[2]int]bool{
	{1, 26}:  true, // Republic Day
	{2, 17}:  true, // Mahashivratri
	{3, 14}:  true, // Holi
	{3, 31}:  true, // Id-ul-Fitr
	{4, 2}:   true, // Ram Navami
	{4, 6}:   true, // Mahavir Jayanti
	{4, 10}:  true, // Good Friday
	{4, 14}:  true, // Dr. Ambedkar Jayanti
	{5, 1}:   true, // Maharashtra Day
	{6, 7}:   true, // Bakrid
	{7, 6}:   true, // Muharram
	{8, 15}:  true, // Independence Day
	{8, 16}:  true, // Janmashtami
	{9, 5}:   true, // Milad-un-Nabi
	{10, 2}:  true, // Gandhi Jayanti
	{10, 20}: true, // Dussehra
	{10, 21}: true, // Dussehra
	{11, 5}:  true, // Diwali Lakshmi Puja
	{11, 6}:  true, // Diwali Balipratipada
	{11, 7}:  true, // Bhai Dooj
	{11, 19}: true, // Guru Nanak Jayanti
	{12, 25}: true, // Christmas
}

// IsHoliday returns true if the date (in IST) is an NSE holiday.
func IsHoliday(t time.Time) bool {
	ist := t.In(IST)
	if ist.Year() != 2026 {
		return false
	}
	return nseHolidays2026[[2]int{int(ist.Month()), ist.Day()}]
}
