// Package jsonreader implements the Robust JSON Reader (C3): three
// escalating parse strategies (strict streaming, structural repair,
// bounded LLM-assisted repair) over arbitrary JSON input.
package jsonreader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

const llmRepairMaxBytes = 64 * 1024

// Reader implements interfaces.JSONReader. gateway may be nil; LLM-assisted
// repair is then unavailable and strategy 3 is skipped.
type Reader struct {
	gateway interfaces.Gateway
	logger  arbor.ILogger
}

// New creates a Reader. gateway is optional (see package doc).
func New(gateway interfaces.Gateway, logger arbor.ILogger) *Reader {
	return &Reader{gateway: gateway, logger: logger}
}

// ReadItems parses raw via three escalating strategies, invoking fn for
// each top-level item (or once, for a non-array root).
func (r *Reader) ReadItems(ctx context.Context, raw []byte, opts interfaces.JSONReadOptions, fn func(item interface{}) error) (*interfaces.RepairReport, error) {
	if report, err := r.readStrict(raw, fn); err == nil {
		return report, nil
	}

	repaired, repairsLogged, ok := repairJSON(raw)
	if ok {
		if report, err := r.readStrict(repaired, fn); err == nil {
			report.Strategy = interfaces.RepairStrategyRepair
			report.RepairsLogged = repairsLogged
			r.logger.Info().Strs("repairs", repairsLogged).Msg("structural repair succeeded")
			return report, nil
		}
	}

	if opts.AllowLLMRepair && r.gateway != nil && len(raw) <= llmRepairMaxBytes {
		if fixed, err := r.llmRepair(ctx, raw); err == nil {
			if report, err := r.readStrict(fixed, fn); err == nil {
				report.Strategy = interfaces.RepairStrategyLLM
				r.logger.Info().Msg("LLM-assisted repair succeeded")
				return report, nil
			}
		}
	}

	if opts.BestEffort {
		offset := int64(findLastBalancedOffset(raw))
		return &interfaces.RepairReport{
			Strategy:      interfaces.RepairStrategyRepair,
			PartialOffset: &offset,
		}, r.readBestEffort(raw[:offset], fn)
	}

	return nil, fmt.Errorf("malformed-beyond-repair")
}

// readStrict performs a strict streaming parse in bounded memory: array
// roots are decoded element-by-element via json.Decoder, never
// materialising the whole array at once.
func (r *Reader) readStrict(raw []byte, fn func(item interface{}) error) (*interfaces.RepairReport, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, isArray := tok.(json.Delim)
	if isArray && delim == '[' {
		for dec.More() {
			var item interface{}
			if err := dec.Decode(&item); err != nil {
				return nil, err
			}
			if err := fn(item); err != nil {
				return nil, err
			}
		}
		if _, err := dec.Token(); err != nil { // consume closing ']'
			return nil, err
		}
		return &interfaces.RepairReport{Strategy: interfaces.RepairStrategyStrict}, nil
	}

	// Non-array root: re-decode the whole document as a single value.
	var whole interface{}
	if err := json.Unmarshal(raw, &whole); err != nil {
		return nil, err
	}
	if err := fn(whole); err != nil {
		return nil, err
	}
	return &interfaces.RepairReport{Strategy: interfaces.RepairStrategyStrict}, nil
}

// readBestEffort parses whatever is left of a truncated document using
// jsonparser's bounded array scan, ignoring trailing garbage past the
// last balanced delimiter.
func (r *Reader) readBestEffort(raw []byte, fn func(item interface{}) error) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		var whole interface{}
		if err := json.Unmarshal(trimmed, &whole); err == nil {
			return fn(whole)
		}
		return nil
	}

	var firstErr error
	_, err := jsonparser.ArrayEach(trimmed, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if err != nil || firstErr != nil {
			return
		}
		var item interface{}
		if uerr := json.Unmarshal(value, &item); uerr != nil {
			return // skip the one malformed trailing element
		}
		if ferr := fn(item); ferr != nil {
			firstErr = ferr
		}
	})
	if firstErr != nil {
		return firstErr
	}
	return err
}

func (r *Reader) llmRepair(ctx context.Context, raw []byte) ([]byte, error) {
	prompt := "Fix this malformed JSON fragment to be syntactically valid. " +
		"Return ONLY the corrected JSON, no commentary:\n\n" + string(raw)
	schema := map[string]interface{}{"type": []string{"object", "array"}}
	result, err := r.gateway.GenerateStructured(ctx, prompt, schema, interfaces.GenerateOptions{MaxRetries: 2})
	if err != nil {
		return nil, err
	}
	fixed, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return fixed, nil
}

// gjsonValid is a cheap pre-check used by repair passes that want to bail
// early without a full json.Unmarshal round trip.
func gjsonValid(data []byte) bool {
	return gjson.ValidBytes(data)
}
