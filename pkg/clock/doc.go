// Package clock provides the time source used by the timer engine.
//
// Production code uses Real, which delegates to package time. Tests use
// Fake, a manually advanced clock whose tickers fire only when Advance
// moves time past their next deadline. This keeps countdown arithmetic
// deterministic without sleeping.
package clock
