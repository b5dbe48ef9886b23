package pipeline

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclFile is the top-level structure of an HCL pipeline file:
//
//	pipeline "review" {
//	  start = "draft"
//	  node "draft" { family = "pass" }
//	  edge "draft-done" {
//	    from = "draft"
//	    to   = "_done"
//	  }
//	}
type hclFile struct {
	Pipeline hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Name           string      `hcl:"name,label"`
	Description    string      `hcl:"description,optional"`
	Start          string      `hcl:"start"`
	Done           string      `hcl:"done,optional"`
	RecursionLimit int         `hcl:"recursion_limit,optional"`
	Nodes          []hclNode   `hcl:"node,block"`
	Edges          []hclEdge   `hcl:"edge,block"`
	Routers        []hclRouter `hcl:"router,block"`
}

type hclNode struct {
	Name    string            `hcl:"name,label"`
	Title   string            `hcl:"title,optional"`
	Family  string            `hcl:"family,optional"`
	Set     map[string]string `hcl:"set,optional"`
	Key     string            `hcl:"key,optional"`
	Value   string            `hcl:"value,optional"`
	Message string            `hcl:"message,optional"`
	Merge   string            `hcl:"merge,optional"`
}

type hclEdge struct {
	ID   string `hcl:"id,label"`
	Name string `hcl:"name,optional"`
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

type hclRouter struct {
	From   string            `hcl:"from,label"`
	Expr   string            `hcl:"expr"`
	Routes map[string]string `hcl:"routes"`
}

func decodeHCL(data []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse pipeline hcl: %w", diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("decode pipeline hcl: %w", diags)
	}
	return parsed.Pipeline.definition(), nil
}

func (p hclPipeline) definition() *Definition {
	d := &Definition{
		Pipeline:       p.Name,
		Description:    p.Description,
		Start:          p.Start,
		Done:           p.Done,
		RecursionLimit: p.RecursionLimit,
	}
	for _, n := range p.Nodes {
		d.Nodes = append(d.Nodes, NodeDef(n))
	}
	for _, e := range p.Edges {
		d.Edges = append(d.Edges, EdgeDef(e))
	}
	for _, r := range p.Routers {
		d.Routers = append(d.Routers, RouterDef(r))
	}
	return d
}
