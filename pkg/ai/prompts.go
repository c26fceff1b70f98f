package ai

// ExtractPrompt is filled with the entity types (three times), the document
// name and the chunk text.
const ExtractPrompt = `
# Task Context
You are tasked with extracting **structured entity and relationship information** from the provided text.

# Background Data
- **Entity_types:** [%s]
- **Document_name:** [%s]

# Detailed Task Description & Rules
## Entity Extraction
1. Identify all entities of the specified types [%s].
2. For each entity, extract:
   - **entity_name:** the name of the entity exactly as it is written in the text. Use the same spelling every time the same entity appears.
   - **entity_type:** one of the provided types [%s].

## Relationship Extraction
1. From the identified entities, determine all clear relationships between pairs of entities.
2. For each relationship, extract:
   - **source_entity:** name of the source entity, as listed in entities.
   - **target_entity:** name of the target entity, as listed in entities.
   - **relationship:** a short lowercase verb phrase describing the relation (e.g. "works for", "located in").
3. Do not relate an entity to itself.

# Example
**Entity_types:** PERSON, ORGANIZATION
**Text:** Martin Smith chairs the Verdantis Central Institution.

**Output:**
{
  "entities": [
    {"entity_name": "Martin Smith", "entity_type": "PERSON"},
    {"entity_name": "Verdantis Central Institution", "entity_type": "ORGANIZATION"}
  ],
  "relationships": [
    {"source_entity": "Martin Smith", "target_entity": "Verdantis Central Institution", "relationship": "chairs"}
  ]
}

# Text
%s

# Output Formatting
Return a single valid JSON object with "entities" and "relationships" arrays.
Use empty arrays when nothing is found. Do not include any text outside of the JSON.
`

// CommunitySummaryPrompt is filled with the entity list and the
// relationship list of one community.
const CommunitySummaryPrompt = `
# Task Context
You are summarizing one community of a knowledge graph. A community is a group of closely connected entities.

# Background Data
## Entities
%s

## Relationships
%s

# Detailed Task Description & Rules
- Write a single paragraph of at most 200 words describing what connects these entities.
- Mention the most central entities by name.
- Use only the information above. Do not invent facts.

# Output Formatting
Return plain text only, without headings or lists.
`

// GlobalQueryPrompt is filled with the joined community summaries and the question.
const GlobalQueryPrompt = "Based on these summaries:\n%s\nAnswer: %s"

// LocalQueryPrompt is filled with the relationship lines of an entity and the question.
const LocalQueryPrompt = "Based on these relationships:\n%s\nAnswer: %s"
