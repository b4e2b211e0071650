// Package timespec parses and evaluates the weekly window notation.
//
// A time-spec is a list of day-group clauses. Each clause names one or more
// ISO weekdays (1 = Monday .. 7 = Sunday) followed by a bracketed list of
// HH:MM-HH:MM spans:
//
//	12345[09:00-17:00]
//	1245[09:00-12:00,13:00-15:00],3[09:00-11:00,12:00-13:30]
//
// Clauses are additive: a weekday may appear in several clauses and is
// active when any of its spans contains the time of day. A span ending at
// 00:00 runs until the end of the day.
package timespec
