package cloudmail

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToken(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantToken string
		wantShape TokenShape
		wantErr   bool
	}{
		{"top level", `{"token":"abc"}`, "abc", ShapeTopLevelToken, false},
		{"data string", `{"code":200,"data":"abc"}`, "abc", ShapeDataString, false},
		{"data object", `{"code":200,"data":{"token":"abc"}}`, "abc", ShapeDataObject, false},
		{"top level wins", `{"token":"top","data":"inner"}`, "top", ShapeTopLevelToken, false},
		{"empty top level falls through", `{"token":"","data":"inner"}`, "inner", ShapeDataString, false},
		{"data without token", `{"data":{"user":"x"}}`, "", ShapeUnrecognized, true},
		{"data number", `{"data":42}`, "", ShapeUnrecognized, true},
		{"nothing", `{"code":500}`, "", ShapeUnrecognized, true},
		{"not json", `<html>`, "", ShapeUnrecognized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, shape, err := DecodeToken([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantToken, tok)
			assert.Equal(t, tt.wantShape, shape)
		})
	}
}

func TestDecodeMailList(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantLen   int
		wantShape ListShape
		wantErr   bool
	}{
		{"object", `{"list":[{"subject":"a"},{"subject":"b"}],"total":2}`, 2, ListShapeObject, false},
		{"object null list", `{"list":null}`, 0, ListShapeObject, false},
		{"array", `[{"subject":"a"}]`, 1, ListShapeArray, false},
		{"empty array", `[]`, 0, ListShapeArray, false},
		{"null", `null`, 0, ListShapeEmpty, false},
		{"absent", ``, 0, ListShapeEmpty, false},
		{"object without list", `{"total":0}`, 0, ListShapeUnrecognized, true},
		{"string", `"nope"`, 0, ListShapeUnrecognized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mails, shape, err := DecodeMailList(json.RawMessage(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, mails, tt.wantLen)
			assert.Equal(t, tt.wantShape, shape)
		})
	}
}

func TestMail_LooseFields(t *testing.T) {
	var m Mail
	require.NoError(t, json.Unmarshal([]byte(`{
		"subject": 12345,
		"sendEmail": "bob@example.com",
		"name": null,
		"createdAt": "2024-05-01 04:00:00",
		"text": "hello"
	}`), &m))

	assert.Equal(t, "12345", m.Subject)
	assert.Equal(t, "", m.Name)
	assert.Equal(t, "2024-05-01 04:00:00", m.Timestamp())

	m.CreateTime = "2024-05-02T00:00:00Z"
	assert.Equal(t, "2024-05-02T00:00:00Z", m.Timestamp())
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	m, ok := Latest([]Mail{{Subject: "first"}, {Subject: "second"}})
	require.True(t, ok)
	assert.Equal(t, "first", m.Subject)
}
