package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/graphweave/graphrag/pkg/ai"
)

type extractEntity struct {
	EntityName string `json:"entity_name" jsonschema_description:"Name of the entity exactly as written in the text"`
	EntityType string `json:"entity_type" jsonschema_description:"One of the provided entity types"`
}

type extractRelationship struct {
	SourceEntity string `json:"source_entity" jsonschema_description:"Name of the source entity, as listed in entities"`
	TargetEntity string `json:"target_entity" jsonschema_description:"Name of the target entity, as listed in entities"`
	Relationship string `json:"relationship" jsonschema_description:"Short lowercase verb phrase describing the relation"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the text"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the text"`
}

// LLMExtractor asks a completion model for entities and relationships
// using structured JSON output.
type LLMExtractor struct {
	client      ai.StructuredCompleter
	entityTypes []string
	opts        []ai.GenerateOption
}

// LLMExtractorParams configures an LLMExtractor. EntityTypes defaults to
// DefaultEntityTypes.
type LLMExtractorParams struct {
	Client      ai.StructuredCompleter
	EntityTypes []string
	Options     []ai.GenerateOption
}

func NewLLMExtractor(params LLMExtractorParams) *LLMExtractor {
	types := params.EntityTypes
	if len(types) == 0 {
		types = DefaultEntityTypes
	}
	return &LLMExtractor{
		client:      params.Client,
		entityTypes: types,
		opts:        params.Options,
	}
}

func (x *LLMExtractor) Extract(ctx context.Context, document string, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return &Result{}, nil
	}

	types := strings.Join(x.entityTypes, ",")
	prompt := fmt.Sprintf(ai.ExtractPrompt, types, filepath.Base(document), types, types, text)

	var res extractResponse
	err := x.client.GenerateCompletionWithFormat(
		ctx,
		"extract_entities_and_relationships",
		"Extract entities and relationships from a provided text.",
		prompt,
		&res,
		x.opts...,
	)
	if errors.Is(err, ai.ErrMalformedOutput) {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, document, err)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", document, err)
	}

	entities := make([]Entity, len(res.Entities))
	for i, e := range res.Entities {
		entities[i] = Entity{Name: e.EntityName, Type: e.EntityType}
	}
	relations := make([]Relation, len(res.Relationships))
	for i, r := range res.Relationships {
		relations[i] = Relation{Source: r.SourceEntity, Target: r.TargetEntity, Label: r.Relationship}
	}
	return normalize(entities, relations), nil
}
