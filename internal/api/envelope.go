package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsy/shelfsy-server/internal/http/response"
)

// EnvelopeVersion is the value of the "v" field in every response body.
const EnvelopeVersion = response.Version

// EnvelopeTransformer wraps every huma response body in the versioned
// envelope. Errors keep their code and details at the top level.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, _ := strconv.Atoi(status)

	switch body := v.(type) {
	case response.Envelope:
		return body, nil
	case *APIError:
		return response.Failure(body.Code, body.Message, body.Details), nil
	case error:
		return response.Failure(statusToCode(code), body.Error(), nil), nil
	}

	env := response.Success(v)
	env.Success = code < 400
	return env, nil
}
