package graph

import (
	"encoding/json"
	"time"
)

// NodeType represents the type of graph node
type NodeType string

const (
	NodeTypeEvent      NodeType = "Event"
	NodeTypeInstrument NodeType = "Instrument"
	NodeTypeCompany    NodeType = "Company"
	NodeTypeRecord     NodeType = "Record"
)

// EdgeType represents the type of graph edge
type EdgeType string

const (
	// EdgeTypeCauses is the causal Event → Event edge, unique per ordered pair
	EdgeTypeCauses EdgeType = "CAUSES"
	// EdgeTypeImpacts links an Event to an Instrument with a significant market reaction
	EdgeTypeImpacts EdgeType = "IMPACTS"
	// EdgeTypeHasInstrument links a Company to its primary Instrument
	EdgeTypeHasInstrument EdgeType = "HAS_INSTRUMENT"
	// EdgeTypeDerivedFrom links an Event back to its originating Record
	EdgeTypeDerivedFrom EdgeType = "DERIVED_FROM"
)

// EventNode is the graph projection of an event
type EventNode struct {
	UID        string   `json:"uid"`       // Event ID (primary key)
	RecordID   string   `json:"recordId"`  // originating record
	EventType  string   `json:"eventType"` // closed vocabulary type
	Title      string   `json:"title"`
	Timestamp  int64    `json:"timestamp"` // Unix nanoseconds
	Tickers    []string `json:"tickers"`
	Companies  []string `json:"companies"`
	IsAnchor   bool     `json:"isAnchor"`
	Confidence float64  `json:"confidence"`
	TrustLevel int      `json:"trustLevel"`
	SourceCode string   `json:"sourceCode"`
}

// InstrumentNode is the graph projection of a tradable security
type InstrumentNode struct {
	UID          string `json:"uid"` // exchange:symbol
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	ISIN         string `json:"isin,omitempty"`
	PrimaryBoard string `json:"primaryBoard,omitempty"`
	IsTraded     bool   `json:"isTraded"`
	Market       string `json:"market,omitempty"`
	SecurityType string `json:"securityType,omitempty"`
}

// CompanyNode is the graph projection of an issuer
type CompanyNode struct {
	UID           string `json:"uid"`
	Name          string `json:"name"`
	PrimaryTicker string `json:"primaryTicker,omitempty"`
	Sector        string `json:"sector,omitempty"`
}

// RecordNode is the graph projection of an ingested record
type RecordNode struct {
	UID         string `json:"uid"` // source:external_id
	SourceCode  string `json:"sourceCode"`
	URL         string `json:"url,omitempty"`
	PublishedAt int64  `json:"publishedAt"` // Unix nanoseconds
}

// CausesEdge carries the full causal-relation payload on a CAUSES edge
type CausesEdge struct {
	Kind           string   `json:"kind"`   // CONFIRMED, RETRO, HYPOTHESIS
	Status         string   `json:"status"` // PROPOSED, ACCEPTED, REJECTED
	Sign           string   `json:"sign"`
	LagClass       string   `json:"lagClass"`
	ConfPrior      float64  `json:"confPrior"`
	ConfText       float64  `json:"confText"`
	ConfMarket     float64  `json:"confMarket"`
	ConfTotal      float64  `json:"confTotal"`
	WeightsVersion string   `json:"weightsVersion"`
	EvidenceIDs    []string `json:"evidenceIds"`
	CreatedAt      int64    `json:"createdAt"` // Unix nanoseconds
}

// ImpactsEdge carries the event-study outcome on an IMPACTS edge
type ImpactsEdge struct {
	PriceImpact  float64 `json:"priceImpact"`  // abnormal return
	VolumeImpact float64 `json:"volumeImpact"` // normalized volume ratio
	Sentiment    string  `json:"sentiment"`
	Window       string  `json:"window"`
	CreatedAt    int64   `json:"createdAt"` // Unix nanoseconds
}

// Node represents a generic graph node
type Node struct {
	Type       NodeType        `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// GraphQuery represents a Cypher query with parameters
type GraphQuery struct {
	Query      string                 `json:"query"`
	Parameters map[string]interface{} `json:"parameters"`
	Timeout    int                    `json:"timeout,omitempty"` // Timeout in milliseconds (0 = default)
}

// QueryResult represents the result of a graph query
type QueryResult struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Stats   QueryStats      `json:"stats"`
}

// QueryStats represents query execution statistics
type QueryStats struct {
	NodesCreated         int           `json:"nodesCreated"`
	NodesDeleted         int           `json:"nodesDeleted"`
	RelationshipsCreated int           `json:"relationshipsCreated"`
	RelationshipsDeleted int           `json:"relationshipsDeleted"`
	PropertiesSet        int           `json:"propertiesSet"`
	LabelsAdded          int           `json:"labelsAdded"`
	ExecutionTime        time.Duration `json:"executionTime"`
}

// GraphStats represents overall graph statistics
type GraphStats struct {
	NodeCount       int              `json:"nodeCount"`
	EdgeCount       int              `json:"edgeCount"`
	NodesByType     map[NodeType]int `json:"nodesByType"`
	EdgesByType     map[EdgeType]int `json:"edgesByType"`
	OldestTimestamp int64            `json:"oldestTimestamp"` // Unix nanoseconds
	NewestTimestamp int64            `json:"newestTimestamp"` // Unix nanoseconds
}
