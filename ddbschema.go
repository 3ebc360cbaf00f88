package pocodynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"

	"github.com/pocodynamo/pocodynamo/internal/schema"
)

// InitSchema creates every table discovered in the process-wide registry
// that doesn't already exist, then blocks until all of them are Active
// (spec §4.4 initSchema). It's idempotent: createTable exempts a
// concurrent caller's ResourceInUseException from exec()'s retries and
// treats it as success.
func InitSchema(ctx context.Context, c *Client) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return createMissing(ctx, c, schema.All(), c.cfg.MaxRetryOnExceptionTimeout)
}

// createMissing lists existing tables, issues CreateTable for each table
// descriptor absent from the store, then polls DescribeTable at
// cfg.PollTableStatus until every created table is Active or timeout
// elapses (spec §4.4 createMissing).
func createMissing(ctx context.Context, c *Client, tables []*schema.TableDescriptor, timeout time.Duration) error {
	existing, err := listTableNames(ctx, c)
	if err != nil {
		return err
	}

	var pending []*schema.TableDescriptor
	for _, t := range tables {
		if existing[t.Name] {
			continue
		}
		if err := createTable(ctx, c, t); err != nil {
			return err
		}
		pending = append(pending, t)
	}
	if len(pending) == 0 {
		return nil
	}
	return waitForTablesToBeActive(ctx, c, pending, timeout)
}

func listTableNames(ctx context.Context, c *Client) (map[string]bool, error) {
	names := map[string]bool{}
	var startFrom *string
	for {
		var out *dynamodb.ListTablesOutput
		err := c.exec(ctx, "", nil, func() error {
			var innerErr error
			out, innerErr = c.ddb.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: startFrom})
			return innerErr
		})
		if err != nil {
			return nil, err
		}
		for _, n := range out.TableNames {
			names[n] = true
		}
		if out.LastEvaluatedTableName == nil {
			return names, nil
		}
		startFrom = out.LastEvaluatedTableName
	}
}

func createTable(ctx context.Context, c *Client, t *schema.TableDescriptor) error {
	input, err := createTableInput(t)
	if err != nil {
		return err
	}
	err = c.exec(ctx, t.Name, isResourceInUse, func() error {
		_, err := c.ddb.CreateTable(ctx, input)
		return err
	})
	if isResourceInUse(err) {
		return nil
	}
	return err
}

// isResourceInUse treats ResourceInUseException as a benign exemption
// from exec's retry classification (spec §4.4 initSchema: "resourceInUse
// responses during creation are swallowed").
func isResourceInUse(err error) bool {
	transient, ok := err.(*TransientStoreError)
	return ok && transient.Code == "ResourceInUseException"
}

func createTableInput(t *schema.TableDescriptor) (*dynamodb.CreateTableInput, error) {
	keySchema := []ddbtypes.KeySchemaElement{
		{AttributeName: &t.HashKey.Name, KeyType: ddbtypes.KeyTypeHash},
	}
	attrDefs := map[string]ddbtypes.ScalarAttributeType{}
	hashScalar, err := t.HashKey.DBType.ScalarAttributeType()
	if err != nil {
		return nil, &schema.SchemaError{Type: t.GoType, Msg: err.Error()}
	}
	attrDefs[t.HashKey.Name] = hashScalar

	if t.RangeKey != nil {
		keySchema = append(keySchema, ddbtypes.KeySchemaElement{AttributeName: &t.RangeKey.Name, KeyType: ddbtypes.KeyTypeRange})
		rangeScalar, err := t.RangeKey.DBType.ScalarAttributeType()
		if err != nil {
			return nil, &schema.SchemaError{Type: t.GoType, Msg: err.Error()}
		}
		attrDefs[t.RangeKey.Name] = rangeScalar
	}

	var gsis []ddbtypes.GlobalSecondaryIndex
	for _, idx := range t.GlobalIndexes {
		fd, _ := t.Field(idx.HashKey)
		scalar, err := fd.DBType.ScalarAttributeType()
		if err != nil {
			return nil, &schema.SchemaError{Type: t.GoType, Msg: err.Error()}
		}
		attrDefs[idx.HashKey] = scalar
		idxKeySchema := []ddbtypes.KeySchemaElement{{AttributeName: &idx.HashKey, KeyType: ddbtypes.KeyTypeHash}}
		if idx.RangeKey != "" {
			rfd, _ := t.Field(idx.RangeKey)
			rscalar, err := rfd.DBType.ScalarAttributeType()
			if err != nil {
				return nil, &schema.SchemaError{Type: t.GoType, Msg: err.Error()}
			}
			attrDefs[idx.RangeKey] = rscalar
			idxKeySchema = append(idxKeySchema, ddbtypes.KeySchemaElement{AttributeName: &idx.RangeKey, KeyType: ddbtypes.KeyTypeRange})
		}
		name := idx.Name
		gsis = append(gsis, ddbtypes.GlobalSecondaryIndex{
			IndexName:  &name,
			KeySchema:  idxKeySchema,
			Projection: projectionFor(idx.ProjectionType, idx.ProjectedFields),
			ProvisionedThroughput: &ddbtypes.ProvisionedThroughput{
				ReadCapacityUnits:  &idx.ReadCapacity,
				WriteCapacityUnits: &idx.WriteCapacity,
			},
		})
	}

	var lsis []ddbtypes.LocalSecondaryIndex
	for _, idx := range t.LocalIndexes {
		rfd, _ := t.Field(idx.RangeKey)
		rscalar, err := rfd.DBType.ScalarAttributeType()
		if err != nil {
			return nil, &schema.SchemaError{Type: t.GoType, Msg: err.Error()}
		}
		attrDefs[idx.RangeKey] = rscalar
		name := idx.Name
		lsis = append(lsis, ddbtypes.LocalSecondaryIndex{
			IndexName: &name,
			KeySchema: []ddbtypes.KeySchemaElement{
				{AttributeName: &t.HashKey.Name, KeyType: ddbtypes.KeyTypeHash},
				{AttributeName: &idx.RangeKey, KeyType: ddbtypes.KeyTypeRange},
			},
			Projection: projectionFor(idx.ProjectionType, idx.ProjectedFields),
		})
	}

	attrs := make([]ddbtypes.AttributeDefinition, 0, len(attrDefs))
	for name, scalar := range attrDefs {
		n := name
		attrs = append(attrs, ddbtypes.AttributeDefinition{AttributeName: &n, AttributeType: scalar})
	}

	name := t.Name
	return &dynamodb.CreateTableInput{
		TableName:            &name,
		KeySchema:            keySchema,
		AttributeDefinitions: attrs,
		GlobalSecondaryIndexes: gsis,
		LocalSecondaryIndexes:  lsis,
		BillingMode:            ddbtypes.BillingModeProvisioned,
		ProvisionedThroughput: &ddbtypes.ProvisionedThroughput{
			ReadCapacityUnits:  &t.ReadCapacity,
			WriteCapacityUnits: &t.WriteCapacity,
		},
	}, nil
}

func projectionFor(pt schema.ProjectionType, fields []string) *ddbtypes.Projection {
	proj := &ddbtypes.Projection{ProjectionType: ddbtypes.ProjectionType(pt)}
	if pt == schema.ProjectionInclude {
		proj.NonKeyAttributes = fields
	}
	return proj
}

func waitForTablesToBeActive(ctx context.Context, c *Client, tables []*schema.TableDescriptor, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	remaining := make(map[string]bool, len(tables))
	for _, t := range tables {
		remaining[t.Name] = true
	}
	for len(remaining) > 0 {
		if time.Now().After(deadline) {
			return &TimeoutError{Msg: "timed out waiting for tables to become Active"}
		}
		for name := range remaining {
			active, err := tableIsActive(ctx, c, name)
			if err != nil {
				return err
			}
			if active {
				delete(remaining, name)
			}
		}
		if len(remaining) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollTableStatus):
		}
	}
	return nil
}

func tableIsActive(ctx context.Context, c *Client, name string) (bool, error) {
	var out *dynamodb.DescribeTableOutput
	err := c.exec(ctx, name, nil, func() error {
		var innerErr error
		out, innerErr = c.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &name})
		return innerErr
	})
	if err != nil {
		return false, err
	}
	return out.Table != nil && out.Table.TableStatus == ddbtypes.TableStatusActive, nil
}

// waitForTablesToBeDeleted mirrors waitForTablesToBeActive for the
// deletion path: polls DescribeTable until each name returns
// ResourceNotFoundException, or returns a TimeoutError once timeout
// elapses (spec §4.4 "Deletion mirrors this with
// waitForTablesToBeDeleted").
func waitForTablesToBeDeleted(ctx context.Context, c *Client, names []string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	remaining := make(map[string]bool, len(names))
	for _, n := range names {
		remaining[n] = true
	}
	for len(remaining) > 0 {
		if time.Now().After(deadline) {
			return &TimeoutError{Msg: "timed out waiting for tables to be deleted"}
		}
		for name := range remaining {
			_, err := c.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &name})
			if err != nil && isResourceNotFound(err, name) {
				delete(remaining, name)
			}
		}
		if len(remaining) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollTableStatus):
		}
	}
	return nil
}

func isResourceNotFound(err error, table string) bool {
	_, ok := classify(err, table, nil).(*NotFoundError)
	return ok
}

// DeleteTables drops each named table and blocks until AWS confirms
// deletion, the mirror image of InitSchema's create-and-wait.
func DeleteTables(ctx context.Context, c *Client, names ...string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for _, name := range names {
		n := name
		if err := c.exec(ctx, name, nil, func() error {
			_, err := c.ddb.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: &n})
			return err
		}); err != nil {
			return err
		}
	}
	return waitForTablesToBeDeleted(ctx, c, names, c.cfg.MaxRetryOnExceptionTimeout)
}

// DescribeYAML renders every registered table's schema as YAML, in the
// shape the teacher's dynamodb/schema package uses for its own
// human-readable schema dumps.
func DescribeYAML() ([]byte, error) {
	doc := yamlSchema{}
	for _, t := range schema.All() {
		doc.Tables = append(doc.Tables, yamlTable(t))
	}
	return yaml.Marshal(doc)
}

type yamlSchema struct {
	Tables []yamlTableDef `yaml:"tables"`
}

type yamlTableDef struct {
	Name         string       `yaml:"name"`
	PartitionKey yamlKeyDef   `yaml:"partitionKey"`
	SortKey      *yamlKeyDef  `yaml:"sortKey,omitempty"`
	GSIs         []yamlGSIDef `yaml:"gsis,omitempty"`
}

type yamlKeyDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

type yamlGSIDef struct {
	Name         string      `yaml:"name"`
	PartitionKey yamlKeyDef  `yaml:"partitionKey"`
	SortKey      *yamlKeyDef `yaml:"sortKey,omitempty"`
}

func yamlTable(t *schema.TableDescriptor) yamlTableDef {
	def := yamlTableDef{
		Name:         t.Name,
		PartitionKey: yamlKeyDef{Name: t.HashKey.Name, Kind: string(t.HashKey.DBType)},
	}
	if t.RangeKey != nil {
		def.SortKey = &yamlKeyDef{Name: t.RangeKey.Name, Kind: string(t.RangeKey.DBType)}
	}
	for _, idx := range t.GlobalIndexes {
		fd, _ := t.Field(idx.HashKey)
		gsi := yamlGSIDef{Name: idx.Name, PartitionKey: yamlKeyDef{Name: fd.Name, Kind: string(fd.DBType)}}
		if idx.RangeKey != "" {
			rfd, _ := t.Field(idx.RangeKey)
			gsi.SortKey = &yamlKeyDef{Name: rfd.Name, Kind: string(rfd.DBType)}
		}
		def.GSIs = append(def.GSIs, gsi)
	}
	return def
}
