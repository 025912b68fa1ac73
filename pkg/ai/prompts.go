package ai

// ExtractGraphPrompt turns a document into a concept graph.
// Args: document text.
const ExtractGraphPrompt = `
# Task Context
You are an expert knowledge graph extractor. Analyze the text below and extract its key concepts and the relationships between them.

# Output Format
Return exactly one JSON object of this shape:
{
  "nodes": [
    { "id": "concept_1", "label": "Concept Name", "description": "Brief description", "level": 1 }
  ],
  "edges": [
    { "source": "concept_1", "target": "concept_2", "relation": "related_to" }
  ]
}

# Rules
- Every node id must be unique and stable, lowercase with underscores.
- Root concepts have level 1, their sub-concepts level 2 and so on.
- Every edge must reference node ids defined in "nodes".
- Ensure the JSON is valid and parseable.
- Do not include markdown formatting and do not wrap the output in code fences.

# Text Content
%s
`

// ExpandGraphPrompt derives child concepts of an existing node from reference text.
// Args: parent id, child level, document text.
const ExpandGraphPrompt = `
# Task Context
You are an expert knowledge graph expander. The graph already contains a parent node with ID "%[1]s".
Analyze the text below, which was retrieved from a reference source about that node, and identify sub-concepts, details and related topics that extend the graph from it.

# Output Format
Return exactly one JSON object of this shape:
{
  "nodes": [
    { "id": "unique_id", "label": "Concept Name", "description": "Brief description", "level": %[2]d }
  ],
  "edges": [
    { "source": "%[1]s", "target": "unique_id", "relation": "related_to" },
    { "source": "unique_id_1", "target": "unique_id_2", "relation": "related_to" }
  ]
}

# Rules
- Treat "%[1]s" as the parent of every node you produce; do not repeat the parent itself in "nodes".
- Every new node has level %[2]d.
- Node ids must be unique and must not collide with "%[1]s".
- Ensure the JSON is valid and parseable.
- Do not include markdown formatting and do not wrap the output in code fences.

# Text Content
%[3]s
`
