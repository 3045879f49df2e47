package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Permissions is a permission bitset stored as a decimal string, so that JSON
// consumers with 53-bit numbers do not lose precision.
type Permissions string

// NewPermissions formats a native bitset.
func NewPermissions(v int64) Permissions {
	return Permissions(strconv.FormatInt(v, 10))
}

// Int64 parses the decimal string. The empty string is zero.
func (p Permissions) Int64() (int64, error) {
	if p == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(p), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid permission bitset %q: %w", string(p), err)
	}
	return v, nil
}

// UnmarshalJSON accepts both the decimal string and a bare JSON number.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Permissions(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("permissions must be a decimal string: %w", err)
	}
	*p = Permissions(n.String())
	return nil
}
