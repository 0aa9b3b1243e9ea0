// Package testutil manages components that tests start, reset and tear
// down, such as the pbtest backend.
//
//	srv := pbtest.New()
//	testutil.T(t).Setup(srv) // stopped when the test ends
//
// Several components can be driven together with a Manager, or with
// T(t).SetupAll, which starts them in order and stops them in reverse. Eventually
// polls a condition for code that settles asynchronously, like a
// realtime connection.
package testutil
