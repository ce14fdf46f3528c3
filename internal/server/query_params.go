package server

import (
	"errors"
	"strconv"
	"strings"
)

var errMissingValue = errors.New("missing_value")

func parseRequiredInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errMissingValue
	}
	return strconv.Atoi(trimmed)
}
