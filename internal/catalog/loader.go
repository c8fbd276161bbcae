package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the layout of a catalog file: kind -> table -> row -> definition.
// Mappings are kept as nodes so declaration order survives decoding.
type document struct {
	QualityRatios yaml.Node `yaml:"quality_ratios"`
	AffixCounts   yaml.Node `yaml:"affix_counts"`
	Affixes       yaml.Node `yaml:"affixes"`
	Sockets       yaml.Node `yaml:"sockets"`
	Items         yaml.Node `yaml:"items"`
	DropTables    yaml.Node `yaml:"drop_tables"`
}

// LoadFile reads and validates a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	stats := c.Stats()
	slog.Info("loaded item catalog",
		"path", path,
		"items", stats.Items,
		"affixes", stats.Affixes,
		"sockets", stats.Sockets,
		"drop_tables", stats.DropTables)
	return c, nil
}

// Load decodes one or more YAML documents into a new catalog and validates it.
func Load(r io.Reader) (*Catalog, error) {
	c := New()
	dec := yaml.NewDecoder(r)
	for {
		var doc document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
		if err := c.merge(&doc); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) merge(doc *document) error {
	if err := eachRow(&doc.QualityRatios, func(h Handle, n *yaml.Node) error {
		var t QualityRatioTable
		if err := n.Decode(&t); err != nil {
			return err
		}
		t.Handle = h
		return c.AddQualityRatios(t)
	}); err != nil {
		return fmt.Errorf("quality_ratios: %w", err)
	}

	if err := eachRow(&doc.AffixCounts, func(h Handle, n *yaml.Node) error {
		var t AffixCountTable
		if err := n.Decode(&t); err != nil {
			return err
		}
		t.Handle = h
		return c.AddAffixCounts(t)
	}); err != nil {
		return fmt.Errorf("affix_counts: %w", err)
	}

	if err := eachRow(&doc.Affixes, func(h Handle, n *yaml.Node) error {
		var d AffixDefinition
		if err := n.Decode(&d); err != nil {
			return err
		}
		d.Handle = h
		return c.AddAffix(d)
	}); err != nil {
		return fmt.Errorf("affixes: %w", err)
	}

	if err := eachRow(&doc.Sockets, func(h Handle, n *yaml.Node) error {
		var d SocketDefinition
		if err := n.Decode(&d); err != nil {
			return err
		}
		d.Handle = h
		return c.AddSocket(d)
	}); err != nil {
		return fmt.Errorf("sockets: %w", err)
	}

	if err := eachRow(&doc.Items, func(h Handle, n *yaml.Node) error {
		var d ItemDefinition
		if err := n.Decode(&d); err != nil {
			return err
		}
		d.Handle = h
		return c.AddItem(d)
	}); err != nil {
		return fmt.Errorf("items: %w", err)
	}

	if err := eachRow(&doc.DropTables, func(h Handle, n *yaml.Node) error {
		var t DropTableCollection
		if err := n.Decode(&t); err != nil {
			return err
		}
		t.Handle = h
		return c.AddDropTable(t)
	}); err != nil {
		return fmt.Errorf("drop_tables: %w", err)
	}
	return nil
}

// eachRow walks a table -> row mapping in document order.
func eachRow(node *yaml.Node, fn func(Handle, *yaml.Node) error) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping of tables", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		tableName := node.Content[i].Value
		rows := node.Content[i+1]
		if rows.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: table %q: expected mapping of rows", rows.Line, tableName)
		}
		for j := 0; j+1 < len(rows.Content); j += 2 {
			h := Handle{Table: tableName, Row: rows.Content[j].Value}
			if err := fn(h, rows.Content[j+1]); err != nil {
				return fmt.Errorf("%s: %w", h, err)
			}
		}
	}
	return nil
}
