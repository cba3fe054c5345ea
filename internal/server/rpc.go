package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	qerrors "github.com/copyleftdev/qnopt/internal/errors"
	"github.com/copyleftdev/qnopt/internal/solve"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    qerrors.Code `json:"code"`
	Message string       `json:"message"`
	Data    string       `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

// decodeParams accepts either a params object or a one element array
// holding it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return qerrors.New(qerrors.CodeInvalidParams, "missing required parameters")
	}
	if raw[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return qerrors.Wrap(err, qerrors.CodeInvalidParams, "invalid parameter format")
		}
		if len(arr) != 1 {
			return qerrors.New(qerrors.CodeInvalidParams, "expected exactly one parameter object")
		}
		raw = arr[0]
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return qerrors.Wrap(err, qerrors.CodeInvalidParams, "invalid parameter format, expected object")
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.OptimizationID == "" {
		return "", qerrors.New(qerrors.CodeInvalidParams, "optimization_id is required")
	}
	return p.OptimizationID, nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, nil, qerrors.Wrap(err, qerrors.CodeParseError, "Parse error"))
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, request.ID, qerrors.New(qerrors.CodeInvalidRequest, "Invalid Request"))
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var req solve.Request
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startJob(req)
		}
	case "optimization.status":
		var id string
		if id, err = decodeID(request.Params); err == nil {
			result, err = s.status(id)
		}
	case "optimization.cancel":
		var id string
		if id, err = decodeID(request.Params); err == nil {
			result, err = s.cancelJob(id)
		}
	case "optimization.problems":
		result = problemInfos()
	default:
		s.respondWithError(w, request.ID, qerrors.Errorf(qerrors.CodeMethodNotFound, "Method not found: %s", request.Method))
		return
	}

	if err != nil {
		s.respondWithError(w, request.ID, err)
		return
	}

	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, id interface{}, err error) {
	code := qerrors.CodeOf(err)
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":  code,
		"error": err.Error(),
	})

	e := &rpcError{Code: code, Message: err.Error()}
	var qe *qerrors.Error
	if qerrors.As(err, &qe) && qe.Err != nil {
		e.Message = qe.Message
		e.Data = qe.Err.Error()
	}
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: e})
}
