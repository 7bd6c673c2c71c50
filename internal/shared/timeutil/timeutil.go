// Package timeutil pins the product's logical-day timezone. The service runs
// for users in Korea; stored timestamps and day buckets use KST regardless of
// the host clock, so a message saved at 01:00 KST belongs to the KST day even
// on a UTC host.
package timeutil

import "time"

// KST is the timezone of the logical day.
var KST = time.FixedZone("KST", 9*60*60)

// Now returns the current time in KST.
func Now() time.Time { return time.Now().In(KST) }

// Today returns the current logical date as YYYY-MM-DD.
func Today() string { return Now().Format("2006-01-02") }
