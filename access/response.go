package access

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/internal/utils"
)

const snippetLength = 200

// Response is the success branch of a request. Payload is never nil: an empty
// body decodes to an empty object.
type Response struct {
	Status  int
	Payload any
	body    []byte
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return apierror.Parse(r.Status, snippet(r.body))
	}
	return nil
}

// Object returns the payload as a JSON object, or nil when it is another shape.
func (r *Response) Object() map[string]any {
	if r == nil {
		return nil
	}
	obj, _ := r.Payload.(map[string]any)
	return obj
}

// Form is a flat POST body; nil values are omitted when encoding.
type Form map[string]*string

// FormOf builds a Form from plain values.
func FormOf(values map[string]string) Form {
	form := make(Form, len(values))
	for k, v := range values {
		form[k] = utils.Ptr(v)
	}
	return form
}

// Encode renders the form as application/x-www-form-urlencoded with sorted keys.
func (f Form) Encode() string {
	values := url.Values{}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if f[k] != nil {
			values.Set(k, *f[k])
		}
	}
	return values.Encode()
}

// decodeResponse turns a status and raw body into exactly one of a Response
// or a typed error.
func decodeResponse(status int, body []byte) (*Response, *apierror.Error) {
	if status < 200 || status > 299 {
		return nil, apierror.FromStatus(status, errorMessage(body))
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Response{Status: status, Payload: map[string]any{}}, nil
	}
	var payload any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, apierror.Parse(status, snippet(trimmed))
	}
	return &Response{Status: status, Payload: payload, body: trimmed}, nil
}

// errorMessage prefers a JSON "error" or "message" field, falling back to the raw text.
func errorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(snippet(body))
}

func snippet(body []byte) string {
	if len(body) <= snippetLength {
		return string(body)
	}
	cut := body[:snippetLength]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "..."
}
