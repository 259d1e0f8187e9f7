package bridgesession

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/paramcascade/internal/session"
)

// Event names of the bridge protocol.
const (
	eventCall       = "call"
	eventResult     = "result"
	eventConnect    = "connect"
	eventConnectErr = "connect_error"
	eventDisconnect = "disconnect"
)

// Remote error codes and the session errors they map to.
var remoteErrors = map[string]error{
	"not_found":          session.ErrNotFound,
	"open_failed":        session.ErrOpenFailed,
	"variable_not_found": session.ErrVariableNotFound,
	"no_active_document": session.ErrNoActiveDocument,
	"invalid_handle":     session.ErrInvalidHandle,
}

// call is the payload of a "call" event.
type call struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// result is the payload of a "result" event.
type result struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Error *remoteError    `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// err converts a failed result into a session error.
func (r result) err(method string) error {
	if r.Error == nil {
		return fmt.Errorf("%s: bridge reported failure without detail", method)
	}
	if sentinel, ok := remoteErrors[r.Error.Code]; ok {
		return fmt.Errorf("%s: %s: %w", method, r.Error.Message, sentinel)
	}
	return fmt.Errorf("%s: bridge error %s: %s", method, r.Error.Code, r.Error.Message)
}

// decodeResult reads a result event argument. Socket.io hands decoded JSON
// to listeners, so the argument is re-encoded first.
func decodeResult(arg any) (result, error) {
	var res result
	if arg == nil {
		return res, errors.New("empty result event")
	}
	raw, err := json.Marshal(arg)
	if err != nil {
		return res, fmt.Errorf("encode result event: %w", err)
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return res, fmt.Errorf("decode result event: %w", err)
	}
	if res.ID == "" {
		return res, errors.New("result event without id")
	}
	return res, nil
}

type handleData struct {
	Handle string `json:"handle"`
}

type variableData struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Expression string  `json:"expression"`
	External   bool    `json:"external"`
}

type variablesData struct {
	Variables []variableData `json:"variables"`
}

type instanceData struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Designation string `json:"designation"`
	SourceFile  string `json:"source_file"`
}

type instancesData struct {
	Instances []instanceData `json:"instances"`
}

type propertiesData struct {
	Designation string `json:"designation"`
	Name        string `json:"name"`
}

// stageNames are the wire names of the rebuild stages.
var stageNames = map[session.RebuildStage]string{
	session.StageUpdate:   "update",
	session.StageModel:    "rebuild_model",
	session.StageDocument: "rebuild_document",
}
