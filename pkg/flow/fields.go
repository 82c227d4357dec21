package flow

import (
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Fields decodes the template entries of a node into typed fields, sorted by name.
// Entries that cannot be decoded are skipped.
func Fields(n domain.Node) []domain.Field {
	names := n.FieldNames()
	fields := make([]domain.Field, 0, len(names))
	for _, name := range names {
		field, err := decodeField(n.Template[name])
		if err != nil {
			continue
		}
		if field.Name == "" {
			field.Name = name
		}
		fields = append(fields, field)
	}
	return fields
}

func decodeField(raw any) (domain.Field, error) {
	var field domain.Field
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &field,
	})
	if err != nil {
		return field, err
	}
	return field, dec.Decode(raw)
}
