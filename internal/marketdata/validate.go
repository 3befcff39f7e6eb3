package marketdata

import (
	"fmt"
	"strings"

	"github.com/mahrens917/marketstore/pkg/storeerr"
)

// ensureRequiredFields confirms every required field name is present and
// non-empty in the raw snapshot.
func ensureRequiredFields(key string, raw map[string]string, required []string) error {
	if len(raw) == 0 {
		return &storeerr.ValidationError{Op: "safe_read", Key: key, Reason: "no data"}
	}

	var missing []string
	for _, field := range required {
		if value, ok := raw[field]; !ok || value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &storeerr.ValidationError{
			Op:     "safe_read",
			Key:    key,
			Reason: fmt.Sprintf("missing fields: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// validateSpread checks bid/ask sanity on a coerced payload. Only applies
// when both sides are present; a one-sided book is legitimate.
func validateSpread(key string, data map[string]any) error {
	bid, haveBid := numericField(data, FieldBestBid)
	ask, haveAsk := numericField(data, FieldBestAsk)
	if !haveBid || !haveAsk {
		return nil
	}

	if bid <= 0 || ask <= 0 {
		return &storeerr.ValidationError{
			Op:     "safe_read",
			Key:    key,
			Reason: fmt.Sprintf("non-positive price: bid=%v ask=%v", bid, ask),
		}
	}
	if bid > ask {
		return &storeerr.ValidationError{
			Op:     "safe_read",
			Key:    key,
			Reason: fmt.Sprintf("inverted spread: bid=%v ask=%v", bid, ask),
		}
	}
	return nil
}
