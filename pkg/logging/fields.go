package logging

type entry map[string]any

// Detail is a logging detail that enrich the logging message with additional contextual detail.
type Detail interface {
	addTo(e entry)
}

// Field creates a single key value pair based logging detail.
// It will enrich the log entry with a value in the key you gave.
func Field(key string, value any) Detail {
	return field{Key: key, Value: value}
}

type field struct {
	Key   string
	Value any
}

func (f field) addTo(e entry) {
	e[f.Key] = toFieldValue(f.Value)
}

// Fields is a collection of field that you can add to your loggig record.
// It will enrich the log entry with a value in the key you gave.
type Fields map[string]any

func (fields Fields) addTo(e entry) {
	for k, v := range fields {
		e[k] = toFieldValue(v)
	}
}

// LazyDetail lets you add logging details that aren’t evaluated until the log is actually created.
// This is useful when you want to add fields to a debug log that take effort to calculate,
// but would be skipped in a production environment because of the logging level.
type LazyDetail func() Detail

func (df LazyDetail) addTo(e entry) {
	if df == nil {
		return
	}
	if d := df(); d != nil {
		d.addTo(e)
	}
}

func ErrField(err error) Detail {
	if err == nil {
		return nullDetail{}
	}
	return Field("error", Fields{"message": err.Error()})
}

type nullDetail struct{}

func (nullDetail) addTo(entry) {}

func toFieldValue(v any) any {
	switch v := v.(type) {
	case Fields:
		vs := make(map[string]any, len(v))
		for key, val := range v {
			vs[key] = toFieldValue(val)
		}
		return vs
	case field:
		return map[string]any{v.Key: toFieldValue(v.Value)}
	case error:
		return v.Error()
	default:
		return v
	}
}
