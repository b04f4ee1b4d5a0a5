package engine

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (pulled in transitively) starts a worker goroutine
	// in package init that can never be stopped; it is not a leak from
	// the code under test.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}
