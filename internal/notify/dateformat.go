package notify

import (
	"fmt"
	"time"
)

// Arabic month and weekday names used when rendering entity dates in
// notification mails. Numerals stay Western.
var arabicMonths = [12]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

var arabicWeekdays = [7]string{
	"الأحد", "الاثنين", "الثلاثاء", "الأربعاء", "الخميس", "الجمعة", "السبت",
}

// FormatArabicDate renders t in UTC as "weekday، DD month YYYY HH:MM" with
// Arabic month and weekday names, e.g. "الجمعة، 04 أكتوبر 2024 14:30".
func FormatArabicDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s، %02d %s %d %02d:%02d",
		arabicWeekdays[t.Weekday()],
		t.Day(),
		arabicMonths[t.Month()-1],
		t.Year(),
		t.Hour(),
		t.Minute(),
	)
}
