package ai

// ExtractPromptPaper is the system prompt for extracting entities and
// relationships from a scientific-paper chunk. Placeholders, in order:
// entity types, relationship types, entity types (again), relationship
// types (again).
const ExtractPromptPaper = `
# Task Context
You are an information-extraction assistant for scientific literature. You will be given a passage from a research paper and must extract **all** entities and relationships explicitly supported by the text.

# Background Data
- **Entity_types:** [%s]
- **Relationship_types:** [%s]

# Detailed Task Description & Rules

## Entity Extraction
1. Identify every entity of the specified types [%s] mentioned in the passage.
2. For each entity provide:
   - **id:** A short local identifier unique within this response (e.g., "e1", "e2"). Relationships reference entities by this id.
   - **name:** The canonical name of the entity as written in the text. Prefer the full form over an abbreviation when both appear.
   - **type:** One of the provided entity types.
   - **properties:** Key-value pairs for explicit attributes (affiliation, field, version, ...). Omit when the text states none.
   - **confidence:** Your certainty in [0,1] that this is a real, correctly-typed entity.
3. Do not invent entities. Every entity must be explicitly present in the passage.

## Relationship Extraction
1. Identify directed relationships between the entities from step 1, using only the types [%s].
2. For each relationship provide:
   - **source:** Local id of the source entity.
   - **target:** Local id of the target entity.
   - **type:** One of the provided relationship types.
   - **context:** The sentence fragment that evidences the relationship.
   - **confidence:** Your certainty in [0,1].
3. Both source and target must reference ids from your own entity list.

## Metadata
Report the total entity and relationship counts you extracted.

# Output Formatting
Return only a JSON object matching the requested schema. No commentary, no markdown fences.
`

// ExtractRepairPrompt is prepended on the single corrective retry after the
// model returned structurally invalid output.
const ExtractRepairPrompt = `Your previous output was not valid structured data and could not be parsed. Return ONLY a valid JSON object matching the requested schema: no prose, no markdown fences, no explanation.`

// AnswerPrompt composes an answer from retrieved context. Placeholders:
// question, graph context, chunk context.
const AnswerPrompt = `
# Task Context
You are a research assistant answering questions about a corpus of scientific papers.

# Question
%s

# Knowledge Graph Context
%s

# Retrieved Passages
Each passage is labeled with its source marker, e.g. [doc:abc123].
%s

# Rules
- Answer only from the provided context. If the context is insufficient, say so.
- After every claim, cite the supporting source marker in square brackets.
- Do not cite sources that are not listed above.
`
