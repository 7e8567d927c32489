package patchengine

import (
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
)

const (
	fieldName    = "name"
	fieldContent = "content"
	fieldPatches = "patches"
	fieldOutcome = "outcome"
)

var (
	// errMissingField is returned when a message lacks a required field.
	errMissingField = errors.New("missing field")
	// errFieldType is returned when a field holds a value of the wrong kind.
	errFieldType = errors.New("unexpected field type")
)

// Request asks the engine to patch one binary.
type Request struct {
	// Name is the binary file name, used for diagnostics and the engine's scratch file.
	Name string
	// Content is the binary to patch.
	Content []byte
	// Patches is the spec to apply.
	Patches patchset.Spec
}

// Response carries the engine's answer.
type Response struct {
	// Outcome tells whether the binary changed.
	Outcome patchset.Outcome
	// Content is the patched binary; empty when Outcome is OutcomeUnchanged.
	Content []byte
}

// EncodeRequest converts r to its wire form.
func EncodeRequest(r *Request) (*structpb.Struct, error) {
	patches := make(map[string]any, len(r.Patches))
	for name, subPatches := range r.Patches {
		list := make([]any, 0, len(subPatches))
		for _, subPatch := range subPatches {
			list = append(list, subPatch)
		}

		patches[name] = list
	}

	return structpb.NewStruct(map[string]any{
		fieldName:    r.Name,
		fieldContent: base64.StdEncoding.EncodeToString(r.Content),
		fieldPatches: patches,
	})
}

// DecodeRequest converts a wire message back to a Request.
func DecodeRequest(msg *structpb.Struct) (*Request, error) {
	name, err := stringField(msg, fieldName)
	if err != nil {
		return nil, err
	}

	content, err := bytesField(msg, fieldContent)
	if err != nil {
		return nil, err
	}

	value, ok := msg.GetFields()[fieldPatches]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fieldPatches, errMissingField)
	}

	patchesValue := value.GetStructValue()
	if patchesValue == nil {
		return nil, fmt.Errorf("%s: %w", fieldPatches, errFieldType)
	}

	patches := make(patchset.Spec, len(patchesValue.GetFields()))

	for name, listValue := range patchesValue.GetFields() {
		list := listValue.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("%s.%s: %w", fieldPatches, name, errFieldType)
		}

		subPatches := make([]string, 0, len(list.GetValues()))
		for _, item := range list.GetValues() {
			subPatch, isString := item.GetKind().(*structpb.Value_StringValue)
			if !isString {
				return nil, fmt.Errorf("%s.%s: %w", fieldPatches, name, errFieldType)
			}

			subPatches = append(subPatches, subPatch.StringValue)
		}

		patches[name] = subPatches
	}

	return &Request{
		Name:    name,
		Content: content,
		Patches: patches,
	}, nil
}

// EncodeResponse converts r to its wire form.
func EncodeResponse(r *Response) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldOutcome: r.Outcome.String(),
		fieldContent: base64.StdEncoding.EncodeToString(r.Content),
	})
}

// DecodeResponse converts a wire message back to a Response.
func DecodeResponse(msg *structpb.Struct) (*Response, error) {
	outcomeName, err := stringField(msg, fieldOutcome)
	if err != nil {
		return nil, err
	}

	outcome, err := patchset.ParseOutcome(outcomeName)
	if err != nil {
		return nil, err
	}

	content, err := bytesField(msg, fieldContent)
	if err != nil {
		return nil, err
	}

	return &Response{
		Outcome: outcome,
		Content: content,
	}, nil
}

// stringField returns the string stored under key.
func stringField(msg *structpb.Struct, key string) (string, error) {
	value, ok := msg.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, errMissingField)
	}

	kind, ok := value.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s: %w", key, errFieldType)
	}

	return kind.StringValue, nil
}

// bytesField returns the base64-decoded bytes stored under key.
func bytesField(msg *structpb.Struct, key string) ([]byte, error) {
	encoded, err := stringField(msg, key)
	if err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	return decoded, nil
}
