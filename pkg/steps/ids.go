package steps

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// IDFormat selects how team and counter identifiers are validated.
type IDFormat string

const (
	// IDFormatString accepts any non-empty identifier up to MaxIDLength bytes without slashes.
	IDFormatString IDFormat = "string"
	// IDFormatUUID accepts only UUIDs and stores them in canonical lowercase form.
	IDFormatUUID IDFormat = "uuid"
)

const MaxIDLength = 128

// ParseIDFormat validates a configured identifier format.
func ParseIDFormat(s string) (IDFormat, error) {
	switch IDFormat(strings.ToLower(s)) {
	case IDFormatString:
		return IDFormatString, nil
	case IDFormatUUID:
		return IDFormatUUID, nil
	default:
		return "", errors.Errorf("invalid id format %q (string/uuid)", s)
	}
}

// Normalize validates an identifier and returns the form it is stored under.
func (f IDFormat) Normalize(id string) (string, error) {
	switch f {
	case IDFormatUUID:
		u, err := uuid.Parse(id)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidID, "%q is not a uuid", id)
		}
		return u.String(), nil
	default:
		if id == "" {
			return "", errors.Wrap(ErrInvalidID, "empty identifier")
		}
		if len(id) > MaxIDLength {
			return "", errors.Wrapf(ErrInvalidID, "identifier longer than %d bytes", MaxIDLength)
		}
		if strings.Contains(id, "/") {
			return "", errors.Wrapf(ErrInvalidID, "%q contains a slash", id)
		}
		return id, nil
	}
}
