// Package detect
// Author: momentics <momentics@gmail.com>
//
// Load-screen marker recognition. Only the handful of client log line shapes
// that bracket a load are understood; everything else is ignored.
//
// A relevant line looks like:
//
//	2024/12/14 18:03:55 123456789 3ef2308e [INFO Client 1234] [SHADER] Delay: OFF
//
// i.e. date, time, elapsed milliseconds, hex thread id, client instance, tag.

package detect

import (
	"regexp"

	"github.com/momentics/coreparker/api"
)

const prefix = `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} \d+ [a-fA-F0-9]+ \[INFO Client \d+\] `

var (
	engineInit = regexp.MustCompile(prefix + `\[ENGINE\] Init$`)
	loadStart  = regexp.MustCompile(prefix + `\[SHADER\] Delay: OFF$`)
	loadEnd    = regexp.MustCompile(prefix + `\[SHADER\] Delay: ON$`)
)

// rules are evaluated in order; LoadStart wins over EngineInit.
var rules = []struct {
	re *regexp.Regexp
	ev api.Event
}{
	{loadStart, api.EventLoadStart},
	{engineInit, api.EventEngineInit},
	{loadEnd, api.EventLoadEnd},
}

// Classify maps a log line to at most one transition event.
func Classify(line string) (api.Event, bool) {
	for _, r := range rules {
		if r.re.MatchString(line) {
			return r.ev, true
		}
	}
	return 0, false
}
