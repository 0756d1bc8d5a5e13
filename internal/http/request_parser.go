package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON object into dst. Field-level decode
// failures such as a malformed amount keep their validation class; anything
// else is a bad request.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %q has the wrong type", core.ErrValidation, typeErr.Field)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", core.ErrValidation, name, raw)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(query url.Values, name string) (int, bool, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid %s %q", core.ErrValidation, name, v)
	}
	return n, true, nil
}

// parsePeriod reads year and month, defaulting each to the current month.
func parsePeriod(query url.Values, now time.Time) (core.Period, error) {
	p := core.Period{Year: now.Year(), Month: int(now.Month())}

	if y, ok, err := queryInt(query, "year"); err != nil {
		return core.Period{}, err
	} else if ok {
		p.Year = y
	}
	if m, ok, err := queryInt(query, "month"); err != nil {
		return core.Period{}, err
	} else if ok {
		p.Month = m
	}

	return p, p.Validate()
}

// parseFilter reads the optional accountId, month and year filters.
func parseFilter(query url.Values) (core.TransactionFilter, error) {
	var f core.TransactionFilter

	if v := strings.TrimSpace(query.Get("accountId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: invalid accountId %q", core.ErrValidation, v)
		}
		f.AccountID = &id
	}
	if m, ok, err := queryInt(query, "month"); err != nil {
		return f, err
	} else if ok {
		f.Month = &m
	}
	if y, ok, err := queryInt(query, "year"); err != nil {
		return f, err
	} else if ok {
		f.Year = &y
	}

	if _, _, err := f.Period(); err != nil {
		return f, err
	}
	return f, nil
}

// parseSalary reads an optional decimal salary; absent yields zero.
func parseSalary(query url.Values) (core.Money, error) {
	v := strings.TrimSpace(query.Get("salary"))
	if v == "" {
		return core.Money{}, nil
	}
	return core.ParseMoney(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
