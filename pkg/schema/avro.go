package schema

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/linkedin/goavro/v2"
	"go.uber.org/zap"
)

const (
	// Magic byte prefix for Confluent wire format
	magicByte byte = 0x0
	// magic byte plus 4-byte schema ID
	headerSize = 5
)

// AvroCodec encodes feature rows as Avro in the Confluent wire format
type AvroCodec struct {
	registry RegistryClient
	logger   *zap.Logger

	mu     sync.Mutex
	codecs map[int]*goavro.Codec
}

// NewAvroCodec creates a new Avro codec. registry may be nil when every
// decode is given the writer schema.
func NewAvroCodec(registry RegistryClient, logger *zap.Logger) *AvroCodec {
	return &AvroCodec{
		registry: registry,
		logger:   logger,
		codecs:   make(map[int]*goavro.Codec),
	}
}

// Encode serializes a row of the group with the registered schema
func (c *AvroCodec) Encode(group *FeatureGroup, row map[string]interface{}, metadata *SchemaMetadata) ([]byte, error) {
	if metadata.SchemaType != SchemaTypeAvro {
		return nil, fmt.Errorf("expected AVRO schema, got %s", metadata.SchemaType)
	}

	codec, err := c.getCodec(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to get codec: %w", err)
	}

	native, err := toNative(group, row)
	if err != nil {
		return nil, fmt.Errorf("failed to convert row to native: %w", err)
	}

	avroBytes, err := codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("failed to encode Avro: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(avroBytes)))
	buf.WriteByte(magicByte)
	if err := binary.Write(buf, binary.BigEndian, int32(metadata.ID)); err != nil {
		return nil, fmt.Errorf("failed to write schema ID: %w", err)
	}
	buf.Write(avroBytes)

	return buf.Bytes(), nil
}

// SchemaID extracts the writer schema ID from a wire format message
func SchemaID(data []byte) (int, error) {
	if len(data) < headerSize {
		return 0, errors.New("data too short for Confluent wire format")
	}
	if data[0] != magicByte {
		return 0, fmt.Errorf("invalid magic byte: expected 0x0, got 0x%x", data[0])
	}
	return int(binary.BigEndian.Uint32(data[1:headerSize])), nil
}

// Decode deserializes a wire format message back into a row of the group.
// The writer schema is fetched from the registry when it differs from metadata.
func (c *AvroCodec) Decode(ctx context.Context, group *FeatureGroup, data []byte, metadata *SchemaMetadata) (map[string]interface{}, error) {
	schemaID, err := SchemaID(data)
	if err != nil {
		return nil, err
	}

	if metadata == nil || metadata.ID != schemaID {
		if c.registry == nil {
			return nil, fmt.Errorf("schema %d unknown and no registry configured", schemaID)
		}
		metadata, err = c.registry.GetSchema(ctx, schemaID)
		if err != nil {
			return nil, fmt.Errorf("failed to get schema %d: %w", schemaID, err)
		}
	}

	codec, err := c.getCodec(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to get codec: %w", err)
	}

	native, _, err := codec.NativeFromBinary(data[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode Avro: %w", err)
	}

	record, ok := native.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decoded value is %T, not a record", native)
	}
	return fromNative(group, record), nil
}

// getCodec retrieves or compiles the codec of a schema
func (c *AvroCodec) getCodec(metadata *SchemaMetadata) (*goavro.Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if codec, exists := c.codecs[metadata.ID]; exists {
		return codec, nil
	}

	codec, err := goavro.NewCodec(metadata.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro codec: %w", err)
	}
	c.codecs[metadata.ID] = codec

	c.logger.Debug("Created Avro codec",
		zap.Int("schema_id", metadata.ID),
		zap.String("subject", metadata.Subject),
	)

	return codec, nil
}

// toNative converts a row to goavro's native form. Nullable values are
// wrapped in unions.
func toNative(group *FeatureGroup, row map[string]interface{}) (map[string]interface{}, error) {
	native := make(map[string]interface{}, len(group.Features))
	for _, f := range group.Features {
		v := row[f.Name]
		if v == nil {
			if !f.Nullable {
				return nil, fmt.Errorf("column %s is not nullable", f.Name)
			}
			native[f.Name] = nil
			continue
		}
		coerced, err := coerce(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		if f.Nullable {
			native[f.Name] = goavro.Union(string(f.Type), coerced)
		} else {
			native[f.Name] = coerced
		}
	}
	return native, nil
}

func coerce(t FeatureType, v interface{}) (interface{}, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		if n, ok := toInt64(v); ok {
			return int32(n), nil
		}
	case TypeLong:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case TypeDouble:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
	}
	return nil, fmt.Errorf("cannot encode %T as %s", v, t)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// fromNative unwraps unions and maps Avro ints back to Go ints
func fromNative(group *FeatureGroup, record map[string]interface{}) map[string]interface{} {
	row := make(map[string]interface{}, len(record))
	for _, f := range group.Features {
		v, ok := record[f.Name]
		if !ok {
			continue
		}
		if u, isUnion := v.(map[string]interface{}); isUnion {
			v = u[string(f.Type)]
		}
		if n, isInt := v.(int32); isInt {
			v = int(n)
		}
		row[f.Name] = v
	}
	return row
}

// ValidateAvroSchema validates an Avro schema
func ValidateAvroSchema(schemaStr string) error {
	_, err := goavro.NewCodec(schemaStr)
	if err != nil {
		return fmt.Errorf("invalid Avro schema: %w", err)
	}
	return nil
}

// GetAvroSchemaFields extracts field names from an Avro schema
func GetAvroSchemaFields(schemaStr string) ([]string, error) {
	var schema map[string]interface{}
	if err := json.Unmarshal([]byte(schemaStr), &schema); err != nil {
		return nil, fmt.Errorf("failed to parse Avro schema: %w", err)
	}

	fields, ok := schema["fields"].([]interface{})
	if !ok {
		return nil, errors.New("schema does not contain fields")
	}

	var fieldNames []string
	for _, field := range fields {
		if fieldMap, ok := field.(map[string]interface{}); ok {
			if name, ok := fieldMap["name"].(string); ok {
				fieldNames = append(fieldNames, name)
			}
		}
	}

	return fieldNames, nil
}
