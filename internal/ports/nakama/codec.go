package nakama

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"unostake/internal/app"
	"unostake/internal/app/onboarding"
	"unostake/internal/ports"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeResourceExhausted  = 8
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnavailable        = 14
)

var errEmptyPayload = errors.New("payload is required")

// decodePayload parses an RPC or realtime payload into v. The payload must
// be a JSON object; protojson rejects anything else before v sees it.
func decodePayload(payload []byte, v interface{}) error {
	if len(payload) == 0 {
		return errEmptyPayload
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(payload, s); err != nil {
		return fmt.Errorf("payload must be a JSON object: %w", err)
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// encodePayload renders v as a JSON object through structpb so RPC and
// realtime responses share one wire form.
func encodePayload(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("response must be an object: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(s)
}

// invalidPayload converts a decode failure into an InvalidArgument error.
func invalidPayload(err error) error {
	return runtime.NewError(fmt.Sprintf(`{"kind":"validation","code":"INVALID_PAYLOAD","message":%q}`, err.Error()), codeInvalidArgument)
}

// toRuntimeError maps an application error onto a Nakama error. The message
// carries the structured failure as JSON.
func toRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	failure := describe(err)
	message, mErr := json.Marshal(failure)
	if mErr != nil {
		message = []byte(failure.Message)
	}
	return runtime.NewError(string(message), statusCode(failure))
}

func describe(err error) app.Failure {
	switch {
	case errors.Is(err, onboarding.ErrInvalidAddress):
		return app.Failure{Kind: app.KindValidation, Code: "INVALID_ADDRESS", Message: err.Error()}
	case errors.Is(err, onboarding.ErrNotLinked):
		return app.Failure{Kind: app.KindStateConflict, Code: "ADDRESS_NOT_LINKED", Message: err.Error()}
	case errors.Is(err, ports.ErrAddressLinked):
		return app.Failure{Kind: app.KindStateConflict, Code: "ADDRESS_ALREADY_LINKED", Message: err.Error()}
	}
	return app.Describe(err)
}

func statusCode(f app.Failure) int {
	switch f.Kind {
	case app.KindValidation:
		return codeInvalidArgument
	case app.KindStateConflict:
		switch f.Code {
		case "UNKNOWN_MATCH":
			return codeNotFound
		case "UNAUTHORIZED_PLAYER":
			return codePermissionDenied
		}
		return codeFailedPrecondition
	case app.KindLedger:
		return codeUnavailable
	case app.KindResourceExhausted:
		return codeResourceExhausted
	}
	return codeInternal
}
