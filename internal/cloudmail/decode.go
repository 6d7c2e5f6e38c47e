package cloudmail

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TokenShape identifies which layout a token response used.
type TokenShape int

const (
	ShapeUnrecognized TokenShape = iota
	// ShapeTopLevelToken is {"token": "..."}.
	ShapeTopLevelToken
	// ShapeDataString is {"data": "..."}.
	ShapeDataString
	// ShapeDataObject is {"data": {"token": "..."}}.
	ShapeDataObject
)

func (s TokenShape) String() string {
	switch s {
	case ShapeTopLevelToken:
		return "top_level_token"
	case ShapeDataString:
		return "data_string"
	case ShapeDataObject:
		return "data_object"
	default:
		return "unrecognized"
	}
}

// DecodeToken extracts a token from a login response body.
func DecodeToken(body []byte) (string, TokenShape, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", ShapeUnrecognized, fmt.Errorf("decoding token response: %w", err)
	}

	if tok, ok := jsonString(obj["token"]); ok && tok != "" {
		return tok, ShapeTopLevelToken, nil
	}

	if data, present := obj["data"]; present {
		if tok, ok := jsonString(data); ok && tok != "" {
			return tok, ShapeDataString, nil
		}
		var inner map[string]json.RawMessage
		if json.Unmarshal(data, &inner) == nil {
			if tok, ok := jsonString(inner["token"]); ok && tok != "" {
				return tok, ShapeDataObject, nil
			}
		}
	}

	return "", ShapeUnrecognized, ErrUnrecognizedShape
}

func jsonString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ListShape identifies which layout a mail listing used.
type ListShape int

const (
	ListShapeUnrecognized ListShape = iota
	// ListShapeObject is {"list": [...]}.
	ListShapeObject
	// ListShapeArray is a bare array.
	ListShapeArray
	// ListShapeEmpty is null or an absent data field.
	ListShapeEmpty
)

func (s ListShape) String() string {
	switch s {
	case ListShapeObject:
		return "object"
	case ListShapeArray:
		return "array"
	case ListShapeEmpty:
		return "empty"
	default:
		return "unrecognized"
	}
}

// DecodeMailList decodes the data field of a listing response.
func DecodeMailList(data json.RawMessage) ([]Mail, ListShape, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ListShapeEmpty, nil
	}

	switch data[0] {
	case '{':
		var page struct {
			List json.RawMessage `json:"list"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, ListShapeUnrecognized, fmt.Errorf("decoding mail page: %w", err)
		}
		if page.List == nil {
			return nil, ListShapeUnrecognized, ErrUnrecognizedShape
		}
		var mails []Mail
		if err := json.Unmarshal(page.List, &mails); err != nil {
			return nil, ListShapeUnrecognized, fmt.Errorf("decoding mail list: %w", err)
		}
		return mails, ListShapeObject, nil

	case '[':
		var mails []Mail
		if err := json.Unmarshal(data, &mails); err != nil {
			return nil, ListShapeUnrecognized, fmt.Errorf("decoding mail list: %w", err)
		}
		return mails, ListShapeArray, nil
	}

	return nil, ListShapeUnrecognized, ErrUnrecognizedShape
}

// Latest returns the first mail of a listing.
func Latest(mails []Mail) (*Mail, bool) {
	if len(mails) == 0 {
		return nil, false
	}
	return &mails[0], true
}
