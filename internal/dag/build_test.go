package dag

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func job(name string, needs ...string) *config.Job {
	return &config.Job{
		Name:  name,
		Needs: needs,
		Steps: []*config.Step{{Name: "work", Run: "true"}},
	}
}

func pipeline(jobs ...*config.Job) *config.Pipeline {
	return &config.Pipeline{Name: "test", Jobs: jobs}
}

func TestBuild_ReleasePipeline(t *testing.T) {
	build := job("build")
	build.Matrix = &config.Matrix{Axes: []*config.Axis{
		{Name: "os", Values: []string{"linux", "windows"}},
	}}
	release := job("release", "test")
	release.Condition = `trigger.branch == "main"`

	plan, err := Build(context.Background(), pipeline(
		job("publish", "release"),
		release,
		job("test", "build"),
		build,
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"build", "test", "release", "publish"}, plan.TopologicalOrder())

	var ids []string
	for _, inst := range plan.Instances() {
		ids = append(ids, inst.Key())
	}
	assert.Equal(t, []string{"publish", "release", "test", "build[os=linux]", "build[os=windows]"}, ids,
		"instances follow declaration order, then matrix order")

	tmpl, ok := plan.Template("release")
	require.True(t, ok)
	require.NotNil(t, tmpl.Condition)
	assert.Equal(t, []string{"test"}, tmpl.Needs)
	assert.Equal(t, []string{"publish"}, tmpl.Dependents)

	inst, ok := plan.Instance("build[os=windows]")
	require.True(t, ok)
	assert.Equal(t, 4, inst.Ordinal)
}

func TestBuild_DescriptorErrors(t *testing.T) {
	badCondition := job("release", "test")
	badCondition.Condition = `upper(branch) == "MAIN"`

	undeclaredNeeds := job("release", "test")
	undeclaredNeeds.Condition = `needs.build.result == "success"`

	unknownAxis := job("build")
	unknownAxis.Condition = `matrix.os == "linux"`

	emptyAxis := job("build")
	emptyAxis.Matrix = &config.Matrix{Axes: []*config.Axis{{Name: "os"}}}

	noSteps := &config.Job{Name: "build"}

	bothRunAndUses := job("build")
	bothRunAndUses.Steps[0].Uses = "print"

	dupOutput := job("build")
	dupOutput.Outputs = []string{"wheel", "wheel"}

	testCases := []struct {
		name      string
		pipeline  *config.Pipeline
		job       string
		violation Violation
	}{
		{"empty pipeline", pipeline(), "", ViolationEmpty},
		{"invalid name", pipeline(job("has space")), "has space", ViolationInvalidName},
		{"duplicate name", pipeline(job("build"), job("test", "build"), job("build")), "build", ViolationDuplicateName},
		{"unknown dependency", pipeline(job("test", "biuld")), "test", ViolationUnknownDependency},
		{"self-cycle", pipeline(job("build", "build")), "build", ViolationSelfCycle},
		{"disallowed condition", pipeline(job("test"), badCondition), "release", ViolationInvalidCondition},
		{"condition reads undeclared need", pipeline(job("build"), job("test"), undeclaredNeeds), "release", ViolationInvalidCondition},
		{"condition reads unknown axis", pipeline(unknownAxis), "build", ViolationInvalidCondition},
		{"empty axis", pipeline(emptyAxis), "build", ViolationInvalidMatrix},
		{"no steps", pipeline(noSteps), "build", ViolationInvalidStep},
		{"run and uses", pipeline(bothRunAndUses), "build", ViolationInvalidStep},
		{"duplicate output", pipeline(dupOutput), "build", ViolationInvalidOutput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := Build(context.Background(), tc.pipeline)
			require.Error(t, err)
			assert.Nil(t, plan, "no partial plan may be exposed")
			assert.ErrorIs(t, err, ErrDescriptor)

			var descErr *DescriptorError
			require.ErrorAs(t, err, &descErr)
			assert.Equal(t, tc.job, descErr.Job)
			assert.Equal(t, tc.violation, descErr.Violation)
		})
	}
}

func TestBuild_CycleWitness(t *testing.T) {
	testCases := []struct {
		name     string
		pipeline *config.Pipeline
		witness  []string
	}{
		{
			name:     "two-cycle",
			pipeline: pipeline(job("a", "b"), job("b", "a")),
			witness:  []string{"a", "b", "a"},
		},
		{
			name: "three-cycle behind an acyclic prefix",
			pipeline: pipeline(
				job("lint"),
				job("build", "lint", "package"),
				job("test", "build"),
				job("package", "test"),
			),
			witness: []string{"build", "package", "test", "build"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := Build(context.Background(), tc.pipeline)
			require.Error(t, err)
			assert.Nil(t, plan)

			var cycErr *CyclicDependencyError
			require.True(t, errors.As(err, &cycErr))
			assert.Equal(t, tc.witness, cycErr.Cycle)
			assert.ErrorIs(t, err, ErrDescriptor)
		})
	}
}

func TestBuild_AcyclicDiamondLoads(t *testing.T) {
	plan, err := Build(context.Background(), pipeline(
		job("build"),
		job("unit", "build"),
		job("docs", "build"),
		job("publish", "unit", "docs"),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "unit", "docs", "publish"}, plan.TopologicalOrder())
	assert.Len(t, plan.Instances(), 4)
}
