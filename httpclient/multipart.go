package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"slices"
	"strings"
)

// MultipartBody is a multipart/form-data request body. Pass it as
// Request.Body; the boundary Content-Type is set automatically.
type MultipartBody struct {
	// Fields are plain form values, written in key order.
	Fields map[string]string
	// Files are file parts. Several parts may share a FieldName.
	Files []FileField
}

// FileField is one uploaded file.
type FileField struct {
	FieldName string
	FileName  string
	// ContentType defaults to application/octet-stream.
	ContentType string
	// Data is used when Reader is nil.
	Data   []byte
	Reader io.Reader
}

// NewMultipartBody builds a form from record data. Strings are sent as is,
// nil values as empty strings and anything else as JSON.
func NewMultipartBody(data map[string]any, files ...FileField) (*MultipartBody, error) {
	m := &MultipartBody{Fields: make(map[string]string, len(data)), Files: files}
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			m.Fields[k] = ""
		case string:
			m.Fields[k] = val
		case fmt.Stringer:
			m.Fields[k] = val.String()
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode form field %q: %w", k, err)
			}
			m.Fields[k] = string(raw)
		}
	}
	return m, nil
}

func (m *MultipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	for _, f := range m.Files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(f.FieldName), quoteEscaper.Replace(f.FileName)))
		header.Set("Content-Type", ct)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}

		switch {
		case f.Reader != nil:
			_, err = io.Copy(part, f.Reader)
		default:
			_, err = part.Write(f.Data)
		}
		if err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
