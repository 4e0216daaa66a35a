package pricing

import "errors"

// ErrPriceUnavailable signals that no direct, inverse, or triangulated path
// exists between an asset and the requested base. Callers must treat the
// accompanying zero value as "could not value", never as a real zero.
var ErrPriceUnavailable = errors.New("pricing: no valuation path for asset")
