package bulletin

import (
	"bulletin-scraper/lib/restyutil"
)

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput makes clients constructed afterwards dump
// their HTTP exchanges to out. Debugging aid, off by default.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
