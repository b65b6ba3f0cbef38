package storage

import (
	"bytes"
	"errors"

	"github.com/bytedance/sonic"

	"tasks-api/domain"
)

const documentIndent = "  "

var (
	errNullDocument    = errors.New("document is null")
	errDocumentMissing = errors.New("document does not exist")
)

type document struct {
	Tasks []domain.Task `json:"tasks"`
}

// decodeDocument extracts the task list from a persisted document. A top
// level that is not an object, or a missing or non-array "tasks" field, yields
// an empty collection. Only malformed JSON and a null document fail to parse.
func decodeDocument(source string, data []byte) ([]domain.Task, error) {
	var top sonic.NoCopyRawMessage
	if err := sonic.ConfigStd.Unmarshal(data, &top); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	top = bytes.TrimSpace(top)
	if len(top) == 0 || bytes.Equal(top, []byte("null")) {
		return nil, &ParseError{Source: source, Err: errNullDocument}
	}
	if top[0] != '{' {
		return []domain.Task{}, nil
	}

	var root map[string]sonic.NoCopyRawMessage
	if err := sonic.ConfigStd.Unmarshal(top, &root); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	raw := bytes.TrimSpace(root["tasks"])
	if len(raw) == 0 || raw[0] != '[' {
		return []domain.Task{}, nil
	}
	tasks := make([]domain.Task, 0, 8)
	if err := sonic.ConfigStd.Unmarshal(raw, &tasks); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return tasks, nil
}

func encodeDocument(tasks []domain.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return sonic.ConfigStd.MarshalIndent(document{Tasks: tasks}, "", documentIndent)
}
