package blackboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Dataset identifies one of the two inputs under comparison.
// Dataset 1 is the reference (requirements); dataset 2 is the subject (implementation).
type Dataset int

const (
	Dataset1 Dataset = 1
	Dataset2 Dataset = 2
)

// Validate checks that the dataset is 1 or 2.
func (d Dataset) Validate() error {
	switch d {
	case Dataset1, Dataset2:
		return nil
	default:
		return fmt.Errorf("unknown dataset: %d", int(d))
	}
}

// String returns the canonical wire name ("dataset1" or "dataset2").
func (d Dataset) String() string {
	return fmt.Sprintf("dataset%d", int(d))
}

// ElementNodeType returns the graph node type used for elements of this dataset.
func (d Dataset) ElementNodeType() NodeType {
	if d == Dataset2 {
		return NodeTypeDataset2Element
	}
	return NodeTypeDataset1Element
}

// ParseDataset accepts "dataset1", "dataset_1", "d1" and "1" (and the dataset-2 equivalents).
func ParseDataset(s string) (Dataset, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "dataset")
	v = strings.TrimPrefix(v, "_")
	v = strings.TrimPrefix(v, "d")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("unknown dataset: %q", s)
	}
	d := Dataset(n)
	if err := d.Validate(); err != nil {
		return 0, fmt.Errorf("unknown dataset: %q", s)
	}
	return d, nil
}

// Element is one ingested item of a dataset. Elements are immutable once a run starts.
type Element struct {
	ID      string  `json:"id"`      // UUID - stable identifier
	Dataset Dataset `json:"dataset"` // 1 or 2
	Index   int     `json:"index"`   // Zero-based position within the dataset
	Label   string  `json:"label"`   // Short human-readable title
	Content string  `json:"content"` // Full text of the element
}

// NodeType defines the kind of a knowledge-graph node.
type NodeType string

const (
	NodeTypeDataset1Element NodeType = "dataset1_element"
	NodeTypeDataset2Element NodeType = "dataset2_element"
	NodeTypeDataset1Concept NodeType = "dataset1_concept"
	NodeTypeDataset2Concept NodeType = "dataset2_concept"
	NodeTypeSharedConcept   NodeType = "shared_concept"
	NodeTypeTheme           NodeType = "theme"
	NodeTypeGap             NodeType = "gap"
	NodeTypeRisk            NodeType = "risk"
	NodeTypeRequirement     NodeType = "requirement"
)

// CreatableNodeTypes lists the node types the model may create through create_concept.
// Element nodes are created at ingestion only.
var CreatableNodeTypes = []NodeType{
	NodeTypeDataset1Concept,
	NodeTypeDataset2Concept,
	NodeTypeSharedConcept,
	NodeTypeTheme,
	NodeTypeGap,
	NodeTypeRisk,
}

// Validate checks if the NodeType is a valid enum value.
func (t NodeType) Validate() error {
	switch t {
	case NodeTypeDataset1Element, NodeTypeDataset2Element,
		NodeTypeDataset1Concept, NodeTypeDataset2Concept, NodeTypeSharedConcept,
		NodeTypeTheme, NodeTypeGap, NodeTypeRisk, NodeTypeRequirement:
		return nil
	default:
		return fmt.Errorf("unknown node type: %q", t)
	}
}

// IsElement reports whether the node mirrors an ingested element.
func (t NodeType) IsElement() bool {
	return t == NodeTypeDataset1Element || t == NodeTypeDataset2Element
}

// IsConcept reports whether the node is model-authored (concept, theme, gap, risk, requirement).
// Concept nodes must carry provenance and are addressable by label.
func (t NodeType) IsConcept() bool {
	return t.Validate() == nil && !t.IsElement()
}

// Creatable reports whether the model may create nodes of this type.
func (t NodeType) Creatable() bool {
	for _, c := range CreatableNodeTypes {
		if c == t {
			return true
		}
	}
	return false
}

// SourceDataset records which dataset(s) a node derives from.
type SourceDataset string

const (
	SourceDataset1    SourceDataset = "dataset1"
	SourceDataset2    SourceDataset = "dataset2"
	SourceDatasetBoth SourceDataset = "both"
	SourceDatasetNone SourceDataset = "none"
)

// Validate checks if the SourceDataset is a valid enum value.
func (s SourceDataset) Validate() error {
	switch s {
	case SourceDataset1, SourceDataset2, SourceDatasetBoth, SourceDatasetNone:
		return nil
	default:
		return fmt.Errorf("unknown source dataset: %q", s)
	}
}

// Node is a vertex of the knowledge graph.
type Node struct {
	ID               string        `json:"id"`
	Type             NodeType      `json:"type"`
	Label            string        `json:"label"`
	Description      string        `json:"description,omitempty"`
	SourceDataset    SourceDataset `json:"source_dataset"`
	SourceElementIDs []string      `json:"source_element_ids"` // Element or node IDs this node was derived from
	CreatedAtMs      int64         `json:"created_at_ms"`
}

// EdgeType defines the relation carried by an edge.
type EdgeType string

const (
	EdgeTypeRelatesTo     EdgeType = "relates_to"
	EdgeTypeImplements    EdgeType = "implements"
	EdgeTypeDependsOn     EdgeType = "depends_on"
	EdgeTypeConflictsWith EdgeType = "conflicts_with"
	EdgeTypeSupports      EdgeType = "supports"
	EdgeTypeCovers        EdgeType = "covers"
)

// EdgeTypes lists every valid edge type in display order.
var EdgeTypes = []EdgeType{
	EdgeTypeRelatesTo, EdgeTypeImplements, EdgeTypeDependsOn,
	EdgeTypeConflictsWith, EdgeTypeSupports, EdgeTypeCovers,
}

// Links reports whether the edge counts as coverage of a dataset-2 element
// (implements or relates_to).
func (t EdgeType) Links() bool {
	return t == EdgeTypeImplements || t == EdgeTypeRelatesTo
}

// Validate checks if the EdgeType is a valid enum value.
func (t EdgeType) Validate() error {
	for _, v := range EdgeTypes {
		if v == t {
			return nil
		}
	}
	return fmt.Errorf("unknown edge type: %q", t)
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	ID           string   `json:"id"`
	SourceNodeID string   `json:"source_node_id"`
	TargetNodeID string   `json:"target_node_id"`
	Type         EdgeType `json:"type"`
	Label        string   `json:"label,omitempty"`
	CreatedAtMs  int64    `json:"created_at_ms"`
}

// EntryType classifies a blackboard entry.
type EntryType string

const (
	EntryTypePlan        EntryType = "plan"
	EntryTypeFinding     EntryType = "finding"
	EntryTypeObservation EntryType = "observation"
	EntryTypeQuestion    EntryType = "question"
	EntryTypeConclusion  EntryType = "conclusion"
	EntryTypeToolResult  EntryType = "tool_result"
)

// EntryTypes lists every valid entry type.
var EntryTypes = []EntryType{
	EntryTypePlan, EntryTypeFinding, EntryTypeObservation,
	EntryTypeQuestion, EntryTypeConclusion, EntryTypeToolResult,
}

// Validate checks if the EntryType is a valid enum value.
func (t EntryType) Validate() error {
	for _, v := range EntryTypes {
		if v == t {
			return nil
		}
	}
	return fmt.Errorf("unknown entry type: %q", t)
}

// Entry is one append-only record in the reasoning log.
// Sequence is assigned by the store and is strictly increasing per run.
type Entry struct {
	ID                string    `json:"id"`
	Sequence          int64     `json:"sequence"`
	Type              EntryType `json:"type"`
	Content           string    `json:"content"`
	Confidence        *float64  `json:"confidence,omitempty"`
	TargetPerspective string    `json:"target_perspective,omitempty"`
	Turn              int       `json:"turn"`
	CreatedAtMs       int64     `json:"created_at_ms"`
}

// Criticality grades a tesseract cell.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityMajor    Criticality = "major"
	CriticalityMinor    Criticality = "minor"
	CriticalityInfo     Criticality = "info"
)

// Criticalities lists every valid criticality, most severe first.
var Criticalities = []Criticality{CriticalityCritical, CriticalityMajor, CriticalityMinor, CriticalityInfo}

// Validate checks if the Criticality is a valid enum value.
func (c Criticality) Validate() error {
	switch c {
	case CriticalityCritical, CriticalityMajor, CriticalityMinor, CriticalityInfo:
		return nil
	default:
		return fmt.Errorf("unknown criticality: %q", c)
	}
}

// TesseractSteps is the number of analysis steps per dataset-1 element.
const TesseractSteps = 5

// Cell is one point of the tesseract grid, keyed by (ElementID, Step).
// Writing the same key twice replaces the previous value.
type Cell struct {
	ElementID       string      `json:"element_id"`
	ElementLabel    string      `json:"element_label"`
	Step            int         `json:"step"`
	StepLabel       string      `json:"step_label"`
	Polarity        float64     `json:"polarity"` // -1 (contradicted) .. +1 (fully satisfied)
	Criticality     Criticality `json:"criticality"`
	EvidenceSummary string      `json:"evidence_summary"`
	Turn            int         `json:"turn"`
	UpdatedAtMs     int64       `json:"updated_at_ms"`
}

// Field returns the hash field name for the cell's key.
func (c *Cell) Field() string {
	return fmt.Sprintf("%s:%d", c.ElementID, c.Step)
}

// Validate checks cell bounds.
func (c *Cell) Validate() error {
	if !isValidUUID(c.ElementID) {
		return fmt.Errorf("invalid element ID: not a valid UUID")
	}
	if c.Step < 1 || c.Step > TesseractSteps {
		return fmt.Errorf("step must be between 1 and %d, got %d", TesseractSteps, c.Step)
	}
	if c.Polarity < -1 || c.Polarity > 1 {
		return fmt.Errorf("polarity must be between -1 and 1, got %g", c.Polarity)
	}
	if err := c.Criticality.Validate(); err != nil {
		return err
	}
	return nil
}

// VennEntry is one classified item of the final Venn result.
type VennEntry struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Criticality   string `json:"criticality,omitempty"`
	Evidence      string `json:"evidence,omitempty"`
	SourceElement string `json:"sourceElement,omitempty"`
	TargetElement string `json:"targetElement,omitempty"`

	// Resolved canonical element IDs, filled in at finalization.
	D1ElementID string `json:"d1ElementId,omitempty"`
	D2ElementID string `json:"d2ElementId,omitempty"`
}

// VennSummary carries the three coverage percentages (0-100).
type VennSummary struct {
	TotalD1Coverage float64 `json:"totalD1Coverage"`
	TotalD2Coverage float64 `json:"totalD2Coverage"`
	AlignmentScore  float64 `json:"alignmentScore"`
}

// VennResult is the terminal classification of a run.
// Summary is what the model reported; Computed is derived from the classification itself.
type VennResult struct {
	UniqueToD1    []VennEntry  `json:"uniqueToD1"`
	Aligned       []VennEntry  `json:"aligned"`
	UniqueToD2    []VennEntry  `json:"uniqueToD2"`
	Summary       VennSummary  `json:"summary"`
	Computed      *VennSummary `json:"computed,omitempty"`
	Turn          int          `json:"turn,omitempty"`
	FinalizedAtMs int64        `json:"finalized_at_ms,omitempty"`
}

// RunState is the orchestrator state of a run.
type RunState string

const (
	RunStateInit          RunState = "INIT"
	RunStateTurnPending   RunState = "TURN_PENDING"
	RunStateTurnExecuting RunState = "TURN_EXECUTING"
	RunStateDone          RunState = "DONE"
	RunStateFailed        RunState = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// RunStatus is the persisted progress marker of a run.
type RunStatus struct {
	RunID       string   `json:"run_id"`
	State       RunState `json:"state"`
	Turn        int      `json:"turn"`
	MaxTurns    int      `json:"max_turns"`
	Lens        string   `json:"lens,omitempty"`
	Error       string   `json:"error,omitempty"`
	UpdatedAtMs int64    `json:"updated_at_ms"`
}

// Validate checks if the Element has valid field values.
func (e *Element) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid element ID: not a valid UUID")
	}
	if err := e.Dataset.Validate(); err != nil {
		return err
	}
	if e.Index < 0 {
		return fmt.Errorf("invalid index: must be >= 0, got %d", e.Index)
	}
	if strings.TrimSpace(e.Label) == "" && strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("element must have a label or content")
	}
	return nil
}

// Validate checks if the Node has valid field values.
func (n *Node) Validate() error {
	if !isValidUUID(n.ID) {
		return fmt.Errorf("invalid node ID: not a valid UUID")
	}
	if err := n.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Label) == "" {
		return fmt.Errorf("node label cannot be empty")
	}
	if err := n.SourceDataset.Validate(); err != nil {
		return err
	}
	if n.Type.IsConcept() && len(n.SourceElementIDs) == 0 {
		return fmt.Errorf("%s node must reference at least one source element", n.Type)
	}
	for i, id := range n.SourceElementIDs {
		if !isValidUUID(id) {
			return fmt.Errorf("invalid source element at index %d: not a valid UUID", i)
		}
	}
	return nil
}

// Validate checks if the Edge has valid field values.
func (e *Edge) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid edge ID: not a valid UUID")
	}
	if !isValidUUID(e.SourceNodeID) {
		return fmt.Errorf("invalid source node ID: not a valid UUID")
	}
	if !isValidUUID(e.TargetNodeID) {
		return fmt.Errorf("invalid target node ID: not a valid UUID")
	}
	return e.Type.Validate()
}

// Validate checks if the Entry has valid field values.
// ID and Sequence are assigned by the store and are not checked here.
func (e *Entry) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("entry content cannot be empty")
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return fmt.Errorf("confidence must be between 0 and 1, got %g", *e.Confidence)
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
