package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Jobs      []*jobBlock      `hcl:"job,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type pipelineBlock struct {
	Name string            `hcl:"name,optional"`
	Env  map[string]string `hcl:"env,optional"`
}

type jobBlock struct {
	Name string `hcl:"name,label"`

	Needs []string `hcl:"needs,optional"`
	// Condition is kept as an expression; its source text is compiled later
	// by the condition package, never evaluated here.
	Condition hcl.Expression `hcl:"condition,optional"`
	Outputs   []string       `hcl:"outputs,optional"`

	Required          bool   `hcl:"required,optional"`
	ContinueOnFailure bool   `hcl:"continue_on_failure,optional"`
	FailFast          bool   `hcl:"fail_fast,optional"`
	Timeout           string `hcl:"timeout,optional"`

	Env     map[string]string `hcl:"env,optional"`
	Secrets []string          `hcl:"secrets,optional"`

	Matrix *matrixBlock `hcl:"matrix,block"`
	Steps  []*stepBlock `hcl:"step,block"`
}

type matrixBlock struct {
	Axes    []*axisBlock        `hcl:"axis,block"`
	Exclude []map[string]string `hcl:"exclude,optional"`
}

type axisBlock struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values"`
}

type stepBlock struct {
	Name       string            `hcl:"name,label"`
	Run        string            `hcl:"run,optional"`
	Uses       string            `hcl:"uses,optional"`
	With       map[string]string `hcl:"with,optional"`
	Env        map[string]string `hcl:"env,optional"`
	WorkingDir string            `hcl:"working_dir,optional"`
}
