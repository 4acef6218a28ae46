package clients

import (
	"bytes"
	"encoding/json"
)

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// unwrap returns the payload of an enveloped body, or the body itself when it
// is a bare value.
func unwrap(op string, status int, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Success == nil {
		return trimmed, nil
	}
	if !*env.Success {
		return nil, &APIError{Op: op, Status: status, Code: "request_failed", Message: firstNonEmpty(env.Message, env.Error)}
	}
	return bytes.TrimSpace(env.Data), nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeList[T any](op string, status int, body []byte) ([]T, error) {
	raw, err := unwrap(op, status, body)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, &DecodeError{Op: op, Reason: "missing data"}
	}
	if raw[0] != '[' {
		return nil, &DecodeError{Op: op, Reason: "expected a list"}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &DecodeError{Op: op, Reason: "invalid list", Err: err}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func decodeOne[T any](op string, status int, body []byte) (T, error) {
	var zero T
	item, err := decodeOptional[T](op, status, body)
	if err != nil {
		return zero, err
	}
	if item == nil {
		return zero, &DecodeError{Op: op, Reason: "missing data"}
	}
	return *item, nil
}

// decodeOptional accepts an empty body or an envelope without data as "no
// entity" and returns nil.
func decodeOptional[T any](op string, status int, body []byte) (*T, error) {
	raw, err := unwrap(op, status, body)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	if raw[0] != '{' {
		return nil, &DecodeError{Op: op, Reason: "expected an object"}
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &DecodeError{Op: op, Reason: "invalid object", Err: err}
	}
	return &item, nil
}

// decodeUploaded accepts {"uploadedFiles": [...]}, a single object or a list.
func decodeUploaded[T any](op string, status int, body []byte) ([]T, error) {
	raw, err := unwrap(op, status, body)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, &DecodeError{Op: op, Reason: "missing data"}
	}
	switch raw[0] {
	case '[':
		return decodeList[T](op, status, raw)
	case '{':
		var probe struct {
			UploadedFiles json.RawMessage `json:"uploadedFiles"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, &DecodeError{Op: op, Reason: "invalid object", Err: err}
		}
		if !isNull(probe.UploadedFiles) {
			return decodeList[T](op, status, probe.UploadedFiles)
		}
		item, err := decodeOne[T](op, status, raw)
		if err != nil {
			return nil, err
		}
		return []T{item}, nil
	}
	return nil, &DecodeError{Op: op, Reason: "expected uploaded files"}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
