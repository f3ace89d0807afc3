package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	errNotJSON = errors.New("response is not valid JSON")
	errNotList = errors.New("response is not a JSON array")

	// embeddedArray finds the first array of objects in free text.
	embeddedArray = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)

	// Day and month may be unpadded in either layout.
	aiDateLayouts = []string{"2006-1-2", "2-1-2006"}
)

// parseResponse turns a model reply into transactions. Items that fail
// validation are logged and skipped. The reply as a whole is malformed when
// it holds no JSON array even after recovery, or when it lists items and
// none of them is usable.
func parseResponse(raw string, log zerolog.Logger) ([]domain.ParsedTransaction, error) {
	items, err := decodeItems(cleanModelJSON(raw))
	if errors.Is(err, errNotJSON) {
		if m := embeddedArray.FindString(raw); m != "" {
			items, err = decodeItems(m)
		}
	}
	if err != nil {
		return nil, domain.NewMalformedResponse(fmt.Sprintf("unusable model reply (%d chars)", len(raw)), err)
	}

	result := make([]domain.ParsedTransaction, 0, len(items))
	for i, item := range items {
		tx, err := transformItem(item, log)
		if err != nil {
			log.Warn().Err(err).Int("item", i+1).RawJSON("raw", compact(item)).Msg("Skipping model transaction")
			continue
		}
		result = append(result, tx)
	}

	if len(items) > 0 && len(result) == 0 {
		return nil, domain.NewMalformedResponse(fmt.Sprintf("none of %d items has the required fields", len(items)), nil)
	}
	log.Info().Int("valid", len(result)).Int("found", len(items)).Msg("Model transactions parsed")
	return result, nil
}

// decodeItems accepts a JSON array, or an object wrapping one under
// "transactions".
func decodeItems(s string) ([]json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if !json.Valid([]byte(s)) {
		return nil, errNotJSON
	}

	switch {
	case strings.HasPrefix(s, "["):
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", errNotList, err)
		}
		return items, nil
	case strings.HasPrefix(s, "{"):
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", errNotList, err)
		}
		if inner, ok := wrapper["transactions"]; ok {
			return decodeItems(string(inner))
		}
	}
	return nil, errNotList
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only from the first '[' to the last ']' if there is junk around.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func transformItem(raw json.RawMessage, log zerolog.Logger) (domain.ParsedTransaction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return domain.ParsedTransaction{}, fmt.Errorf("item is not an object")
	}

	for _, key := range []string{"date", "description", "amount", "direction"} {
		if _, ok := obj[key]; !ok {
			return domain.ParsedTransaction{}, fmt.Errorf("missing required field %q", key)
		}
	}

	date, err := getDateField(obj, "date")
	if err != nil {
		return domain.ParsedTransaction{}, err
	}

	desc := strings.TrimSpace(stringOf(obj["description"]))
	if desc == "" {
		return domain.ParsedTransaction{}, fmt.Errorf("required field %q is empty", "description")
	}

	amount, err := getDecimalField(obj, "amount")
	if err != nil {
		return domain.ParsedTransaction{}, err
	}
	if !amount.IsPositive() {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid amount %s", amount)
	}

	direction, ok := domain.ParseDirection(strings.ToLower(strings.TrimSpace(stringOf(obj["direction"]))))
	if !ok {
		log.Warn().Interface("direction", obj["direction"]).Msg("Invalid direction, defaulting to debit")
	}

	tx := domain.ParsedTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Direction:   direction,
		RawRowData:  string(compact(raw)),
	}
	if v, ok := obj["balance_after"]; ok && v != nil {
		if bal, err := getDecimalField(obj, "balance_after"); err == nil {
			tx.BalanceAfter = decimal.NewNullDecimal(bal)
		}
	}
	return tx, nil
}

func getDateField(m map[string]interface{}, key string) (civil.Date, error) {
	s, ok := m[key].(string)
	if !ok {
		return civil.Date{}, fmt.Errorf("field %q has type %T, want string", key, m[key])
	}
	s = strings.TrimSpace(s)
	for _, layout := range aiDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date %q", s)
}

func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	switch val := m[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(val), ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, m[key])
	}
}

func stringOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func compact(raw json.RawMessage) []byte {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return raw
	}
	return b.Bytes()
}
