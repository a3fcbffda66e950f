package taskmill

// WithClock exposes the scheduler clock to the external tests.
var WithClock = withClock
