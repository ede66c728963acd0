// Package graph persists the causal event graph in FalkorDB: Event,
// Instrument, Company and Record nodes with CAUSES, IMPACTS,
// HAS_INSTRUMENT and DERIVED_FROM edges. All writes are idempotent
// MERGE-based upserts.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FalkorDB/falkordb-go/v2"

	"github.com/finradar/finradar/internal/logging"
)

// Client provides an interface for interacting with FalkorDB
type Client interface {
	// Connect establishes connection to FalkorDB
	Connect(ctx context.Context) error

	// Close closes the connection
	Close() error

	// Ping checks if the connection is alive
	Ping(ctx context.Context) error

	// ExecuteQuery executes a Cypher query and returns results
	ExecuteQuery(ctx context.Context, query GraphQuery) (*QueryResult, error)

	// GetNode retrieves a node by UID
	GetNode(ctx context.Context, nodeType NodeType, uid string) (*Node, error)

	// GetGraphStats retrieves overall graph statistics
	GetGraphStats(ctx context.Context) (*GraphStats, error)

	// InitializeSchema creates indexes and constraints
	InitializeSchema(ctx context.Context) error

	// DeleteGraph completely removes the graph (for testing purposes)
	DeleteGraph(ctx context.Context) error
}

// ClientConfig holds configuration for the FalkorDB client
type ClientConfig struct {
	Host         string        // FalkorDB host
	Port         int           // FalkorDB port
	Password     string        // optional password
	GraphName    string        // name of the graph database
	MaxRetries   int           // max connection retries
	DialTimeout  time.Duration // connection timeout
	ReadTimeout  time.Duration // read timeout
	WriteTimeout time.Duration // write timeout
	PoolSize     int           // connection pool size
}

// DefaultClientConfig returns default configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		GraphName:    "ceg",
		MaxRetries:   3,
		DialTimeout:  30 * time.Second,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		PoolSize:     10,
	}
}

// falkorClient implements the Client interface using the FalkorDB Go client
type falkorClient struct {
	config ClientConfig
	logger *logging.Logger
	db     *falkordb.FalkorDB
	graph  *falkordb.Graph
}

// NewClient creates a new FalkorDB client. Callers that want read
// caching wrap the result in NewCachedClient.
func NewClient(config ClientConfig) Client {
	return &falkorClient{
		config: config,
		logger: logging.GetLogger("graph.client"),
	}
}

// Connect establishes connection to FalkorDB
func (c *falkorClient) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to FalkorDB at %s:%d (graph: %s)", c.config.Host, c.config.Port, c.config.GraphName)

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	// falkordb.ConnectionOption is an alias for redis.Options
	connOpts := &falkordb.ConnectionOption{
		Addr:         addr,
		Password:     c.config.Password,
		DialTimeout:  c.config.DialTimeout,
		ReadTimeout:  c.config.ReadTimeout,
		WriteTimeout: c.config.WriteTimeout,
		PoolSize:     c.config.PoolSize,
		MaxRetries:   c.config.MaxRetries,
	}

	db, err := falkordb.FalkorDBNew(connOpts)
	if err != nil {
		return fmt.Errorf("failed to create FalkorDB client: %w", err)
	}
	c.db = db
	c.graph = db.SelectGraph(c.config.GraphName)

	c.logger.Info("Successfully connected to FalkorDB")
	return nil
}

// Close closes the connection
func (c *falkorClient) Close() error {
	c.logger.Info("Closing FalkorDB connection")
	if c.db != nil && c.db.Conn != nil {
		return c.db.Conn.Close()
	}
	return nil
}

// Ping checks if the connection is alive
func (c *falkorClient) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("client not connected")
	}
	_, err := c.graph.Query("RETURN 1", nil, nil)
	return err
}

// ExecuteQuery executes a Cypher query and returns results
func (c *falkorClient) ExecuteQuery(ctx context.Context, query GraphQuery) (*QueryResult, error) {
	if c.graph == nil {
		return nil, fmt.Errorf("client not connected")
	}

	var options *falkordb.QueryOptions
	if query.Timeout > 0 {
		options = falkordb.NewQueryOptions().SetTimeout(query.Timeout)
	}

	startTime := time.Now()
	result, err := c.graph.Query(query.Query, query.Parameters, options)
	executionTime := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	queryResult := convertFalkorDBResult(result)
	queryResult.Stats.ExecutionTime = executionTime

	return queryResult, nil
}

// convertFalkorDBResult converts a FalkorDB QueryResult to our QueryResult format
func convertFalkorDBResult(result *falkordb.QueryResult) *QueryResult {
	qr := &QueryResult{
		Columns: []string{},
		Rows:    [][]interface{}{},
		Stats:   QueryStats{},
	}

	firstRow := true
	for result.Next() {
		record := result.Record()
		if firstRow {
			qr.Columns = record.Keys()
			firstRow = false
		}
		qr.Rows = append(qr.Rows, record.Values())
	}

	qr.Stats.NodesCreated = result.NodesCreated()
	qr.Stats.NodesDeleted = result.NodesDeleted()
	qr.Stats.RelationshipsCreated = result.RelationshipsCreated()
	qr.Stats.RelationshipsDeleted = result.RelationshipsDeleted()
	qr.Stats.PropertiesSet = result.PropertiesSet()
	qr.Stats.LabelsAdded = result.LabelsAdded()

	return qr
}

// GetNode retrieves a node by UID
func (c *falkorClient) GetNode(ctx context.Context, nodeType NodeType, uid string) (*Node, error) {
	cypherQuery := fmt.Sprintf(
		"MATCH (n:%s {uid: '%s'}) RETURN n",
		nodeType,
		escapeCypherString(uid),
	)

	result, err := c.ExecuteQuery(ctx, GraphQuery{Query: cypherQuery})
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return nil, fmt.Errorf("node not found: %s/%s", nodeType, uid)
	}

	nodeProps, err := nodeProperties(result.Rows[0][0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse node: %w", err)
	}

	propsJSON, err := json.Marshal(nodeProps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	return &Node{
		Type:       nodeType,
		Properties: json.RawMessage(propsJSON),
	}, nil
}

// nodeProperties extracts the property map from a query result cell
func nodeProperties(cell interface{}) (map[string]interface{}, error) {
	switch v := cell.(type) {
	case *falkordb.Node:
		return v.Properties, nil
	case falkordb.Node:
		return v.Properties, nil
	case map[string]interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected node cell type: %T", cell)
	}
}

// GetGraphStats retrieves overall graph statistics
func (c *falkorClient) GetGraphStats(ctx context.Context) (*GraphStats, error) {
	nodeResult, err := c.ExecuteQuery(ctx, GraphQuery{Query: `
		MATCH (n)
		RETURN labels(n)[0] as type, count(n) as count
	`})
	if err != nil {
		return nil, fmt.Errorf("failed to query node counts: %w", err)
	}

	edgeResult, err := c.ExecuteQuery(ctx, GraphQuery{Query: `
		MATCH ()-[r]->()
		RETURN type(r) as type, count(r) as count
	`})
	if err != nil {
		return nil, fmt.Errorf("failed to query edge counts: %w", err)
	}

	timestampResult, err := c.ExecuteQuery(ctx, GraphQuery{Query: `
		MATCH (e:Event)
		RETURN min(e.timestamp) as oldest, max(e.timestamp) as newest
	`})
	if err != nil {
		return nil, fmt.Errorf("failed to query timestamps: %w", err)
	}

	stats := &GraphStats{
		NodesByType: make(map[NodeType]int),
		EdgesByType: make(map[EdgeType]int),
	}

	for _, row := range nodeResult.Rows {
		if len(row) >= 2 {
			if nodeType, ok := row[0].(string); ok {
				if count, ok := asInt(row[1]); ok {
					stats.NodesByType[NodeType(nodeType)] = count
					stats.NodeCount += count
				}
			}
		}
	}

	for _, row := range edgeResult.Rows {
		if len(row) >= 2 {
			if edgeType, ok := row[0].(string); ok {
				if count, ok := asInt(row[1]); ok {
					stats.EdgesByType[EdgeType(edgeType)] = count
					stats.EdgeCount += count
				}
			}
		}
	}

	if len(timestampResult.Rows) > 0 && len(timestampResult.Rows[0]) >= 2 {
		if oldest, ok := asInt64(timestampResult.Rows[0][0]); ok {
			stats.OldestTimestamp = oldest
		}
		if newest, ok := asInt64(timestampResult.Rows[0][1]); ok {
			stats.NewestTimestamp = newest
		}
	}

	c.logger.Debug("Graph stats: %d nodes, %d edges (oldest: %d, newest: %d)",
		stats.NodeCount, stats.EdgeCount, stats.OldestTimestamp, stats.NewestTimestamp)

	return stats, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// InitializeSchema creates indexes and constraints
func (c *falkorClient) InitializeSchema(ctx context.Context) error {
	c.logger.Info("Initializing graph schema for graph: %s", c.config.GraphName)

	indexes := []string{
		"CREATE INDEX FOR (n:Event) ON (n.uid)",
		"CREATE INDEX FOR (n:Event) ON (n.timestamp)",
		"CREATE INDEX FOR (n:Event) ON (n.eventType)",
		"CREATE INDEX FOR (n:Event) ON (n.isAnchor)",
		"CREATE INDEX FOR (n:Instrument) ON (n.uid)",
		"CREATE INDEX FOR (n:Instrument) ON (n.symbol)",
		"CREATE INDEX FOR (n:Company) ON (n.uid)",
		"CREATE INDEX FOR (n:Record) ON (n.uid)",
	}

	for _, indexQuery := range indexes {
		_, err := c.ExecuteQuery(ctx, GraphQuery{Query: indexQuery})
		if err != nil {
			// FalkorDB may return error if index already exists, log but continue
			c.logger.Warn("Failed to create index (may already exist): %v", err)
		}
	}

	c.logger.Info("Schema initialization complete")
	return nil
}

// DeleteGraph completely removes the graph (for testing purposes)
func (c *falkorClient) DeleteGraph(ctx context.Context) error {
	if c.graph == nil {
		return fmt.Errorf("client not connected")
	}

	err := c.graph.Delete()
	if err != nil {
		// "empty key" means the graph doesn't exist yet
		if strings.Contains(err.Error(), "empty key") {
			c.logger.Debug("Graph '%s' does not exist, nothing to delete", c.config.GraphName)
		} else {
			return fmt.Errorf("failed to delete graph: %w", err)
		}
	} else {
		c.logger.Info("Graph '%s' deleted", c.config.GraphName)
	}

	c.graph = c.db.SelectGraph(c.config.GraphName)
	return nil
}

// Helper functions

// buildPropertiesString converts a map to Cypher property syntax
// Example: {name: "foo", age: 30} -> {name: 'foo', age: 30}
func buildPropertiesString(props map[string]interface{}) string {
	if len(props) == 0 {
		return ""
	}

	parts := make([]string, 0, len(props))
	for key, value := range props {
		parts = append(parts, fmt.Sprintf("%s: %s", key, cypherValue(value)))
	}

	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}

// cypherValue renders a single value as a Cypher literal
func cypherValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("'%s'", escapeCypherString(v))
	case bool:
		return fmt.Sprintf("%t", v)
	case int, int64, float64:
		return fmt.Sprintf("%v", v)
	case []string:
		escaped := make([]string, len(v))
		for i, s := range v {
			escaped[i] = fmt.Sprintf("'%s'", escapeCypherString(s))
		}
		return fmt.Sprintf("[%s]", strings.Join(escaped, ", "))
	case []interface{}:
		rendered := make([]string, len(v))
		for i, item := range v {
			rendered[i] = cypherValue(item)
		}
		return fmt.Sprintf("[%s]", strings.Join(rendered, ", "))
	default:
		jsonBytes, _ := json.Marshal(v)
		return fmt.Sprintf("'%s'", escapeCypherString(string(jsonBytes)))
	}
}

// escapeCypherString escapes single quotes in Cypher strings
func escapeCypherString(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
