// Package statement reads and writes balance sheet and change list documents.
package statement

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cleared-dev/proforma/internal/model"
)

var validate = validator.New()

// DecodeSheet reads one balance sheet document. The tree shape is checked
// before field validation so a hostile nesting depth is rejected early.
func DecodeSheet(r io.Reader, maxDepth int) (*model.BalanceSheet, error) {
	var bs model.BalanceSheet
	if err := json.NewDecoder(r).Decode(&bs); err != nil {
		return nil, fmt.Errorf("decoding balance sheet: %w", err)
	}
	if err := bs.CheckStructure(maxDepth); err != nil {
		return nil, err
	}
	if err := check(&bs); err != nil {
		return nil, fmt.Errorf("validating balance sheet: %w", err)
	}
	return &bs, nil
}

// LoadSheet reads a balance sheet document from path.
func LoadSheet(path string, maxDepth int) (*model.BalanceSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening balance sheet: %w", err)
	}
	defer f.Close()

	bs, err := DecodeSheet(f, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bs, nil
}

// DecodeSummary reads a change list with its share counts. Deltas naming an
// unknown section are left for the engine to reject per change.
func DecodeSummary(r io.Reader) (model.UpdateSummary, error) {
	var s model.UpdateSummary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return model.UpdateSummary{}, fmt.Errorf("decoding change list: %w", err)
	}
	if err := CheckSummary(s); err != nil {
		return model.UpdateSummary{}, err
	}
	return s, nil
}

// CheckSummary validates a change list however it was parsed.
func CheckSummary(s model.UpdateSummary) error {
	for i, c := range s.Changes {
		if c.EffectiveDate.IsZero() {
			return fmt.Errorf("validating change list: changes[%d] (%q): missing date", i, c.Narrative)
		}
	}
	if err := check(&s); err != nil {
		return fmt.Errorf("validating change list: %w", err)
	}
	return nil
}

// LoadSummary reads a JSON change list from path.
func LoadSummary(path string) (model.UpdateSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.UpdateSummary{}, fmt.Errorf("opening change list: %w", err)
	}
	defer f.Close()

	s, err := DecodeSummary(f)
	if err != nil {
		return model.UpdateSummary{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Save writes v as indented JSON to path, creating parent directories.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Encode(f, v); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// check runs struct validation and flattens field errors into one message.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}
