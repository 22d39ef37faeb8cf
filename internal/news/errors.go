package news

import "errors"

// ErrEvidenceUnavailable is surfaced once provider retries are exhausted.
// Callers never see the provider's raw error chain without this sentinel.
var ErrEvidenceUnavailable = errors.New("evidence unavailable")

// ErrInvalidQuery rejects empty queries and non-positive limits before
// any network call.
var ErrInvalidQuery = errors.New("invalid query")
