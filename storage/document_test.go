package storage

import (
	"errors"
	"reflect"
	"testing"

	"tasks-api/domain"
)

func TestEncodeDocumentIndentsWithTwoSpaces(t *testing.T) {
	data, err := encodeDocument([]domain.Task{{ID: 1, Title: "A", Description: "d"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := "{\n" +
		"  \"tasks\": [\n" +
		"    {\n" +
		"      \"id\": 1,\n" +
		"      \"title\": \"A\",\n" +
		"      \"description\": \"d\",\n" +
		"      \"completed\": false\n" +
		"    }\n" +
		"  ]\n" +
		"}"
	if string(data) != want {
		t.Fatalf("unexpected document:\n%s", data)
	}
}

func TestEncodeDocumentEmptyCollection(t *testing.T) {
	data, err := encodeDocument(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != "{\n  \"tasks\": []\n}" {
		t.Fatalf("unexpected document: %q", data)
	}
}

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []domain.Task
	}{
		{name: "tasks", data: `{"tasks":[{"id":1,"title":"A","description":"d","completed":true}]}`, want: []domain.Task{{ID: 1, Title: "A", Description: "d", Completed: true}}},
		{name: "missing field", data: `{"other":1}`, want: []domain.Task{}},
		{name: "null field", data: `{"tasks":null}`, want: []domain.Task{}},
		{name: "not an array", data: `{"tasks":{"id":1}}`, want: []domain.Task{}},
		{name: "empty array", data: `{"tasks":[]}`, want: []domain.Task{}},
		{name: "top array", data: `[]`, want: []domain.Task{}},
		{name: "top array of tasks", data: `[{"id":1}]`, want: []domain.Task{}},
		{name: "top number", data: `5`, want: []domain.Task{}},
		{name: "top string", data: ` "x" `, want: []domain.Task{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeDocument("test", []byte(tt.data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeDocumentParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"malformed":   `{"tasks":[`,
		"empty":       ``,
		"top null":    `null`,
		"bad element": `{"tasks":[{"id":"one"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeDocument("test", []byte(data))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.StorageStage() != "parse" {
				t.Fatalf("unexpected stage %q", parseErr.StorageStage())
			}
		})
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tasks := []domain.Task{{ID: 3, Title: "x", Description: "y"}, {ID: 1, Title: "<b>", Completed: true}}
	data, err := encodeDocument(tasks)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeDocument("test", data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, tasks) {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}
