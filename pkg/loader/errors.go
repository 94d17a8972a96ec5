package loader

import "errors"

var (
	// ErrSourceUnavailable wraps every data source failure. The loader stays
	// retryable: the next visibility event issues a new request.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrTornDown is returned when the loader was closed before or while a
	// request was outstanding. The resolution is discarded.
	ErrTornDown = errors.New("loader torn down")

	// ErrExhausted is returned by FetchNextPage once the collection has ended.
	ErrExhausted = errors.New("collection exhausted")

	// ErrFetchInFlight is returned by FetchNextPage while another request is outstanding.
	ErrFetchInFlight = errors.New("fetch already in flight")
)
