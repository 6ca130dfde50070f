package errors

// ErrorRouteNotFound is the error for requests that match no route.
type ErrorRouteNotFound struct{}

func (e *ErrorRouteNotFound) Error() string {
	return "route not found"
}

// ErrorMalformedBody is the error for request bodies that cannot be read or
// decoded as JSON.
type ErrorMalformedBody struct {
	Err error
}

func (e *ErrorMalformedBody) Error() string {
	return "invalid request body"
}

func (e *ErrorMalformedBody) Unwrap() error {
	return e.Err
}

// ErrorUnknown is returned to clients in place of server errors.
type ErrorUnknown struct{}

func (eu *ErrorUnknown) Error() string {
	return "internal server error"
}
