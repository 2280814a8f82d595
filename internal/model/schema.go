package model

import "github.com/invopop/jsonschema"

// CollectionSchema describes the persisted document for integrators that
// read or write the stored file directly.
func CollectionSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Collection{})
	schema.Title = "Q&A collection"
	return schema
}
