// Package kn15 decodes KN15 hydrological telegrams.
//
// # Wire format
//
// A telegram is a run of 5-digit groups separated by whitespace, optionally
// terminated by "=":
//
//	12345 14081 10417 20021 30410=
//
// The first group is the station code. The second, DDHHi, carries the day
// of month, the hour and the section code i (1 = daily, 2 = daily plus the
// previous-period mean). Later groups are identified by their leading digit
// within a section, and sections after the first by a 9-prefixed marker.
//
// # Section One (and Section Two bodies)
//
//	1HHHH  08:00 water level, cm
//	2HHHs  change since the previous report; s=2 means a fall
//	3HHHH  20:00 water level of the previous day, cm
//	4TTtt  optional; water temperature TT/10 °C, air temperature tt °C
//	5EEii  zero or more ice phenomena; ii == EE means no intensity
//	0RRRd  optional daily precipitation RRR mm, duration code d
//
// Levels above 5000 encode negative values as 5000 minus the value, so 15500
// decodes to -500. A group out of this order ends the optional chain and is
// dropped with everything else up to the next section marker.
//
// # Marked sections
//
//	922DD  Section Two, corrected readings for day DD
//	93301  Section Three, followed by 1HHHH mean level (section code 2 only)
//	96NMM  Section Six, discharge measurement N in month MM (section code 2 only):
//	       1HHHH level, 2eQQQ discharge, [3eFFF area], [4hhhh max depth], 5DDGG day/hour
//	988XX  Section Eight, meteorological summary; XX 11/22/33 = decade 1/2/3, 30 = month:
//	       1RRRc precipitation with check digit c = digit sum of RRR mod 10,
//	       2sTTT temperature in tenths, s=1 negative
//
// The eQQQ groups are a compact scientific notation: QQQ × 10^(e-3), so
// 21126 is a discharge of 1.26 m³/s.
//
// # Dates
//
// Only the day and hour are transmitted. They are placed in the month of
// the reference time; a day that month lacks moves to the previous month,
// and a result after the reference time rolls back one month. Section Six
// dates carry a month and roll back a year instead. Both are heuristics that
// assume telegrams arrive within a month (or a year) of observation.
package kn15
