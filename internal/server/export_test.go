package server

// Test-only aliases. The handler tests live in package server_test because
// they import server/mocks, which imports this package; these let them reach
// the unexported identifiers they exercise.
type ErrorResponse = errorResponse

const ReasonUnknownSession = reasonUnknownSession

var StatusFor = statusFor
