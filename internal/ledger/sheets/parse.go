package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"rewards/internal/core"
)

// parseTransactionRows converts A:D rows into transactions, sorted by date
// then id. Rows are best-effort: blank rows are ignored and malformed rows
// are skipped with a warning.
func parseTransactionRows(ctx context.Context, values [][]interface{}) []core.Transaction {
	out := make([]core.Transaction, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if isBlank(cols) {
			continue
		}
		tx, err := parseRow(cols)
		if err != nil {
			// Row 1 is the header; data starts at row 2.
			slog.WarnContext(ctx, "Skipping malformed ledger row", "row", i+2, "error", err)
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func parseRow(cols []string) (core.Transaction, error) {
	if len(cols) < 4 {
		return core.Transaction{}, fmt.Errorf("expected 4 columns, got %d", len(cols))
	}
	id, err := strconv.ParseInt(cols[0], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid id %q", cols[0])
	}
	customerID, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil || customerID <= 0 {
		return core.Transaction{}, fmt.Errorf("invalid customer id %q", cols[1])
	}
	amount, err := parseAmount(cols[2])
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(cols[3])
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{ID: id, CustomerID: customerID, Amount: amount, Date: date}, nil
}

var (
	groupedAmount      = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	decimalCommaAmount = regexp.MustCompile(`^\d+,\d{1,2}$`)
)

// parseAmount accepts plain decimals with an optional sign and currency
// symbol. A comma is a thousands separator when it splits digits into groups
// of three ("1,200.50") and a decimal comma when one or two digits follow it
// ("7,25"). Anything else with a comma is rejected.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	sign := ""
	if strings.HasPrefix(clean, "-") {
		sign, clean = "-", clean[1:]
	}
	clean = strings.TrimPrefix(clean, "$")
	if sign == "" && strings.HasPrefix(clean, "-") {
		sign, clean = "-", clean[1:]
	}

	switch {
	case !strings.Contains(clean, ","):
	case groupedAmount.MatchString(clean):
		clean = strings.ReplaceAll(clean, ",", "")
	case decimalCommaAmount.MatchString(clean):
		clean = strings.Replace(clean, ",", ".", 1)
	default:
		return decimal.Decimal{}, fmt.Errorf("ambiguous amount %q", s)
	}

	amount, err := decimal.NewFromString(sign + clean)
	if err != nil || strings.ContainsAny(clean, "+-") {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if f, ok := v.(float64); ok {
			// Unformatted numeric cells arrive as JSON numbers.
			out[i] = strconv.FormatFloat(f, 'f', -1, 64)
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
