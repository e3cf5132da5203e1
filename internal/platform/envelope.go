package platform

import (
	"encoding/json"
	"fmt"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// trpcBatchEnvelope is the outer shape returned by the platform's batched
// tRPC-style HTTP transport: a one-element array wrapping either a
// successful result or an error.
type trpcBatchEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *trpcError      `json:"error"`
}

type trpcResult struct {
	Data json.RawMessage `json:"data"`
}

type trpcError struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Data    *trpcErrorData `json:"data"`
}

type trpcErrorData struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
}

// decodeEnvelope unwraps a raw platform HTTP response body into the JSON
// payload callers actually want, or a *runtimeerr.RuntimeError describing
// why it couldn't.
//
// Unwrap precedence on the success path is result.data.json, then
// result.data, then result itself — the platform sometimes nests the
// payload under an extra "json" superjson wrapper and sometimes doesn't.
func decodeEnvelope(procedure string, body []byte) (json.RawMessage, error) {
	var batch []trpcBatchEnvelope
	if err := json.Unmarshal(body, &batch); err != nil {
		var single trpcBatchEnvelope
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, runtimeerr.New(runtimeerr.CodeInvalidJSONResponse,
				fmt.Sprintf("could not parse platform response: %v", err)).
				WithProcedure(procedure).WithDetails(err.Error())
		}
		batch = []trpcBatchEnvelope{single}
	}
	if len(batch) == 0 {
		return nil, runtimeerr.New(runtimeerr.CodeInvalidTRPCResponse, "empty platform response").WithProcedure(procedure)
	}

	env := batch[0]
	if env.Error != nil {
		code := env.Error.Code
		if env.Error.Data != nil && env.Error.Data.Code != "" {
			code = env.Error.Data.Code
		}
		return nil, platformErrorToRuntimeError(procedure, env.Error.Message, code)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, runtimeerr.New(runtimeerr.CodeInvalidTRPCResponse, "platform response missing result").WithProcedure(procedure)
	}

	var result trpcResult
	if err := json.Unmarshal(env.Result, &result); err == nil && len(result.Data) > 0 {
		return unwrapResultData(result.Data), nil
	}
	return env.Result, nil
}

// unwrapResultData applies the result.data.json -> result.data steps of the
// fallback chain (decodeEnvelope handles the final fallback to result
// itself): if data isn't a JSON object carrying a "json" key, data is
// returned as-is.
func unwrapResultData(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return data
	}
	var withJSON struct {
		JSON json.RawMessage `json:"json"`
	}
	if err := json.Unmarshal(data, &withJSON); err == nil && len(withJSON.JSON) > 0 {
		return withJSON.JSON
	}
	return data
}
