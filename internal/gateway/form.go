package gateway

import (
	"bytes"
	"io"
	"mime/multipart"
)

// Form builds a multipart request body. Fields and files are written in the
// order they were added.
type Form struct {
	parts []formPart
}

type formPart struct {
	name     string
	value    string
	filename string
	content  []byte
}

// NewForm returns an empty multipart form builder.
func NewForm() *Form {
	return &Form{}
}

// AddField appends a plain text field.
func (f *Form) AddField(name, value string) *Form {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AddFile appends a file part.
func (f *Form) AddFile(name, filename string, content []byte) *Form {
	f.parts = append(f.parts, formPart{name: name, filename: filename, content: content})
	return f
}

// encode serializes the form and returns the body together with the content
// type carrying the generated boundary.
func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range f.parts {
		if p.filename != "" {
			fw, err := w.CreateFormFile(p.name, p.filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := fw.Write(p.content); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := w.WriteField(p.name, p.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
