package network

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jConfig holds connection settings for Neo4jExporter.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// Neo4jExporter mirrors a Graph into Neo4j as (:Gene)-[:RELATION {type}]->(:Gene).
type Neo4jExporter struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jExporter connects to Neo4j. It returns nil and no error when cfg.URI is empty,
// and every method of a nil exporter is a no-op.
func NewNeo4jExporter(ctx context.Context, cfg Neo4jConfig, logger *zap.Logger) (*Neo4jExporter, error) {
	if cfg.URI == "" {
		return nil, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}
	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Neo4jExporter{driver: driver, database: cfg.Database, logger: logger}, nil
}

// Export upserts every node and edge of g in one write transaction.
func (e *Neo4jExporter) Export(ctx context.Context, g *Graph) error {
	if e == nil || e.driver == nil || g == nil {
		return nil
	}
	nodes, rels := exportParams(g)

	session := e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: e.database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT gene_id_unique IF NOT EXISTS FOR (g:Gene) REQUIRE g.id IS UNIQUE`, nil); err != nil {
		e.logger.Warn("neo4j schema init failed (continuing)", zap.Error(err))
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS id
MERGE (:Gene {id: id})
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Gene {id: r.from})
MATCH (b:Gene {id: r.to})
MERGE (a)-[e:RELATION]->(b)
SET e.type = r.type
`, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j gene network sync: %w", err)
	}
	e.logger.Debug("neo4j gene network exported", zap.Int("nodes", len(nodes)), zap.Int("edges", len(rels)))
	return nil
}

// Close releases the driver.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	if e == nil || e.driver == nil {
		return nil
	}
	return e.driver.Close(ctx)
}

// exportParams converts g into Cypher parameters: node ids and {from,to,type} maps.
func exportParams(g *Graph) ([]any, []any) {
	ids := g.Nodes()
	nodes := make([]any, len(ids))
	for i, id := range ids {
		nodes[i] = id
	}
	edges := g.Edges()
	rels := make([]any, len(edges))
	for i, e := range edges {
		rels[i] = map[string]any{"from": e.From, "to": e.To, "type": e.Label}
	}
	return nodes, rels
}
