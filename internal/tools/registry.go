// Package tools defines the fixed tool surface offered to the model and
// executes tool calls against a run's stores.
//
// The catalog is held in a provider-neutral form (Tool and Param); the schema
// package renders it for each provider dialect.
package tools

import (
	"github.com/dyluth/auditor/internal/graph"
	"github.com/dyluth/auditor/pkg/blackboard"
)

// Tool names.
const (
	RequestNextBatch    = "request_next_batch"
	ReadDatasetItem     = "read_dataset_item"
	QueryKnowledgeGraph = "query_knowledge_graph"
	GetConceptLinks     = "get_concept_links"
	WriteBlackboard     = "write_blackboard"
	ReadBlackboard      = "read_blackboard"
	CreateConcept       = "create_concept"
	LinkConcepts        = "link_concepts"
	RecordTesseractCell = "record_tesseract_cell"
	FinalizeVenn        = "finalize_venn"
)

// Param types, using JSON Schema names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeBoolean = "boolean"
)

// Param describes one tool parameter. Items is set for arrays, Fields for objects.
type Param struct {
	Name        string
	Type        string
	Description string
	Enum        []string
	Required    bool
	Items       *Param
	Fields      []Param
}

// Tool is one entry of the catalog.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// RequiredParams returns the names of the tool's required parameters.
func (t Tool) RequiredParams() []string {
	var names []string
	for _, p := range t.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Param returns the named parameter.
func (t Tool) Param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func enumOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var (
	datasetEnum       = []string{"dataset1", "dataset2"}
	filterEnum        = enumOf(graph.Filters)
	entryTypeEnum     = enumOf(blackboard.EntryTypes)
	creatableEnum     = enumOf(blackboard.CreatableNodeTypes)
	sourceDatasetEnum = []string{string(blackboard.SourceDataset1), string(blackboard.SourceDataset2), string(blackboard.SourceDatasetBoth)}
	edgeTypeEnum      = enumOf(blackboard.EdgeTypes)
	criticalityEnum   = enumOf(blackboard.Criticalities)
)

func vennEntryParam(aligned bool) *Param {
	fields := []Param{
		{Name: "id", Type: TypeString, Description: "Element ID, 8-char prefix or a short handle for this entry"},
		{Name: "label", Type: TypeString, Description: "Human-readable label"},
		{Name: "criticality", Type: TypeString, Description: "Severity of the finding"},
		{Name: "evidence", Type: TypeString, Description: "Why the element belongs in this list"},
	}
	if aligned {
		fields = append(fields,
			Param{Name: "sourceElement", Type: TypeString, Description: "Dataset 1 element ID or prefix"},
			Param{Name: "targetElement", Type: TypeString, Description: "Dataset 2 element ID or prefix"},
		)
	}
	return &Param{Type: TypeObject, Fields: fields}
}

var catalog = []Tool{
	{
		Name: RequestNextBatch,
		Description: "Fetch the next batch of elements (full content) from dataset 1 or dataset 2, starting at startIndex. " +
			"Element nodes already exist in the graph; spend turns on analysis and concept creation.",
		Params: []Param{
			{Name: "dataset", Type: TypeString, Enum: datasetEnum, Required: true, Description: "Dataset to page through"},
			{Name: "startIndex", Type: TypeInteger, Required: true, Description: "Zero-based index of the first element of the batch"},
		},
	},
	{
		Name:        ReadDatasetItem,
		Description: "Read one element of dataset 1 or dataset 2 in full. Accepts a full UUID or an 8-char prefix.",
		Params: []Param{
			{Name: "dataset", Type: TypeString, Enum: datasetEnum, Required: true, Description: "Dataset holding the item (1, 2, dataset_1 and dataset_2 are also accepted)"},
			{Name: "itemId", Type: TypeString, Required: true, Description: "Full UUID or 8-char prefix of the item"},
		},
	},
	{
		Name:        QueryKnowledgeGraph,
		Description: "List knowledge-graph nodes matching a dataset filter, with their edges.",
		Params: []Param{
			{Name: "filter", Type: TypeString, Enum: filterEnum, Required: true, Description: "Dataset affiliation filter; orphans are dataset 2 elements with no implements/relates_to link to a concept"},
			{Name: "nodeType", Type: TypeString, Description: "Optional node type (concept, element, theme, gap, risk, ...)"},
			{Name: "limit", Type: TypeInteger, Description: "Maximum number of nodes (default 50)"},
		},
	},
	{
		Name:        GetConceptLinks,
		Description: "Show every node linked to a graph node, and the source elements a concept was derived from.",
		Params: []Param{
			{Name: "nodeId", Type: TypeString, Required: true, Description: "Node UUID, 8-char prefix or concept label"},
		},
	},
	{
		Name:        WriteBlackboard,
		Description: "Append an entry to the blackboard to record plans, findings, observations, questions or conclusions.",
		Params: []Param{
			{Name: "entryType", Type: TypeString, Enum: entryTypeEnum, Required: true, Description: "Kind of entry"},
			{Name: "content", Type: TypeString, Required: true, Description: "Entry text"},
			{Name: "confidence", Type: TypeNumber, Description: "Confidence from 0.0 to 1.0"},
			{Name: "targetAgent", Type: TypeString, Description: "Optional perspective this entry is addressed to"},
		},
	},
	{
		Name:        ReadBlackboard,
		Description: "Read the most recent blackboard entries, newest first.",
		Params: []Param{
			{Name: "entryTypes", Type: TypeArray, Items: &Param{Type: TypeString}, Description: "Optional entry types to include"},
			{Name: "limit", Type: TypeInteger, Description: "Maximum number of entries (default 20)"},
		},
	},
	{
		Name: CreateConcept,
		Description: "Create a concept, theme, gap or risk node. sourceElementIds must name the elements it was derived from " +
			"(full UUIDs or 8-char prefixes); a concept without provenance is rejected.",
		Params: []Param{
			{Name: "label", Type: TypeString, Required: true, Description: "Short label (name is accepted as an alias)"},
			{Name: "description", Type: TypeString, Required: true, Description: "What the concept represents"},
			{Name: "nodeType", Type: TypeString, Enum: creatableEnum, Required: true, Description: "Kind of node to create"},
			{Name: "sourceDataset", Type: TypeString, Enum: sourceDatasetEnum, Required: true, Description: "Dataset(s) the concept originates from"},
			{Name: "sourceElementIds", Type: TypeArray, Items: &Param{Type: TypeString}, Required: true, Description: "Source element UUIDs or 8-char prefixes, at least one"},
		},
	},
	{
		Name: LinkConcepts,
		Description: "Create a directed edge between two existing nodes. Use implements from a dataset 2 element to the concept it realises; " +
			"dataset 2 elements without such a link are reported as orphans. Endpoints accept UUIDs, 8-char prefixes or concept labels.",
		Params: []Param{
			{Name: "sourceNodeId", Type: TypeString, Required: true, Description: "Source node: element prefix, concept label or node UUID"},
			{Name: "targetNodeId", Type: TypeString, Required: true, Description: "Target node: concept label, element prefix or node UUID"},
			{Name: "edgeType", Type: TypeString, Enum: edgeTypeEnum, Required: true, Description: "Relation; implements for dataset 2 to concept, relates_to between concepts"},
			{Name: "label", Type: TypeString, Description: "Optional edge label"},
		},
	},
	{
		Name:        RecordTesseractCell,
		Description: "Record the alignment of one dataset 1 element at one analysis step. Writing the same element and step again replaces the cell.",
		Params: []Param{
			{Name: "elementId", Type: TypeString, Required: true, Description: "Dataset 1 element UUID or 8-char prefix"},
			{Name: "elementLabel", Type: TypeString, Description: "Element label (defaults to the element's own label)"},
			{Name: "step", Type: TypeInteger, Required: true, Description: "Analysis step, 1 to 5"},
			{Name: "stepLabel", Type: TypeString, Description: "Label of the step"},
			{Name: "polarity", Type: TypeNumber, Required: true, Description: "-1 (gap or violation) to +1 (fully covered)"},
			{Name: "criticality", Type: TypeString, Enum: criticalityEnum, Description: "Severity"},
			{Name: "evidenceSummary", Type: TypeString, Required: true, Description: "Evidence behind the score"},
		},
	},
	{
		Name: FinalizeVenn,
		Description: "Submit the final classification. Every dataset 1 element must appear exactly once in uniqueToD1 or aligned, " +
			"and every dataset 2 element exactly once in uniqueToD2 or aligned. Incomplete results are rejected with the offending IDs.",
		Params: []Param{
			{Name: "uniqueToD1", Type: TypeArray, Items: vennEntryParam(false), Required: true, Description: "Dataset 1 elements with no counterpart (coverage gaps)"},
			{Name: "aligned", Type: TypeArray, Items: vennEntryParam(true), Required: true, Description: "Pairs of dataset 1 and dataset 2 elements that correspond"},
			{Name: "uniqueToD2", Type: TypeArray, Items: vennEntryParam(false), Required: true, Description: "Dataset 2 elements with no counterpart (orphan implementations)"},
			{Name: "summary", Type: TypeObject, Required: true, Description: "Coverage percentages", Fields: []Param{
				{Name: "totalD1Coverage", Type: TypeNumber, Description: "Percentage of dataset 1 covered (0-100)"},
				{Name: "totalD2Coverage", Type: TypeNumber, Description: "Percentage of dataset 2 that maps to dataset 1 (0-100)"},
				{Name: "alignmentScore", Type: TypeNumber, Description: "Overall alignment (0-100)"},
			}},
		},
	},
}

// Registry returns the ten tools in catalog order. The slice is a copy.
func Registry() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the tool names in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, t := range catalog {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the tool with the given name.
func Lookup(name string) (Tool, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
