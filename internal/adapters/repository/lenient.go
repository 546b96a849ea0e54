package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// decodeDocument decodes one stored document. When a field holds the wrong
// JSON type the document is decoded again with weak typing: numbers and
// booleans become strings, a lone string becomes a one-element list and a
// {seconds, nanoseconds} timestamp object becomes an instant. A field that
// still cannot be coerced is left empty and named in problems; the record is
// kept. Only a document that is not a JSON object is an error.
func decodeDocument[T any](doc json.RawMessage) (v T, problems []string, err error) {
	if err := json.Unmarshal(doc, &v); err == nil {
		return v, nil, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return v, nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(timestampObjectHook, boolStringHook),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &out,
	})
	if err != nil {
		return out, nil, err
	}
	problems = mistyped(fields, reflect.TypeOf(out))
	if err := dec.Decode(fields); err != nil {
		var me *mapstructure.Error
		if !errors.As(err, &me) {
			return out, nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		problems = append(problems, me.Errors...)
	}
	return out, problems, nil
}

// mistyped names the top-level fields whose JSON type differs from the
// struct field they decode into.
func mistyped(fields map[string]any, t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		raw, ok := fields[name]
		if name == "" || !ok || raw == nil || fits(raw, f.Type) {
			continue
		}
		out = append(out, fmt.Sprintf("'%s' stored as %T", name, raw))
	}
	return out
}

func fits(raw any, t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String:
		_, ok := raw.(string)
		return ok
	case reflect.Bool:
		_, ok := raw.(bool)
		return ok
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok {
			return false
		}
		for _, it := range items {
			if !fits(it, t.Elem()) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// timestampObjectHook turns {seconds, nanoseconds} objects, as exported by
// document databases, into instants when the target is a string.
func timestampObjectHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Map || to.Kind() != reflect.String {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	sec, ok := number(m, "seconds", "_seconds")
	if !ok {
		return data, nil
	}
	nanos, _ := number(m, "nanoseconds", "_nanoseconds")
	return model.FormatInstant(time.Unix(int64(sec), int64(nanos))), nil
}

// boolStringHook renders booleans as "true"/"false" rather than "1"/"0".
func boolStringHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.Bool && to.Kind() == reflect.String {
		b, _ := data.(bool)
		return strconv.FormatBool(b), nil
	}
	return data, nil
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok {
			return f, true
		}
	}
	return 0, false
}
