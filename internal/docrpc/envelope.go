package docrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Request and envelope field names, as the browser client spelled them.
const (
	fieldConnectString = "connectString"
	fieldCollection    = "collectionName"
	fieldData          = "data"

	fieldSuccess     = "success"
	fieldError       = "error"
	keyCollections   = "existingCollections"
	keyObjects       = "objects"
	keyWriteOpResult = "writeOpResult"
	keyResult        = "result"
)

// collectionInfo is one entry of an existingCollections listing.
type collectionInfo struct {
	Name string `json:"name"`
}

// toValue converts any JSON-encodable value into a protobuf Value.
func toValue(v any) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// fromValue decodes a protobuf Value into dst.
func fromValue(v *structpb.Value, dst any) error {
	if v == nil {
		return fmt.Errorf("missing value: %w", ErrInvalidRequest)
	}
	data, err := json.Marshal(v.AsInterface())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// envelope wraps a successful payload.
func envelope(key string, payload any) (*structpb.Struct, error) {
	val, err := toValue(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSuccess: structpb.NewBoolValue(true),
		key:          val,
		fieldError:   structpb.NewStringValue(""),
	}}, nil
}

func failure(key, msg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSuccess: structpb.NewBoolValue(false),
		key:          structpb.NewNullValue(),
		fieldError:   structpb.NewStringValue(msg),
	}}
}

// payload checks an envelope and decodes its key into dst.
func payload(env *structpb.Struct, key string, dst any) error {
	fields := env.GetFields()
	if !fields[fieldSuccess].GetBoolValue() {
		return fmt.Errorf("%s: %w", fields[fieldError].GetStringValue(), ErrRemote)
	}
	if dst == nil {
		return nil
	}
	return fromValue(fields[key], dst)
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requireString(req *structpb.Struct, name string) (string, error) {
	s := stringField(req, name)
	if s == "" {
		return "", fmt.Errorf("missing %s: %w", name, ErrInvalidRequest)
	}
	return s, nil
}

func request(fields map[string]any) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out.Fields[k] = val
	}
	return out, nil
}
