package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-hierarchy/provider/internal/metadata"
)

func testLocalized() LocalizedStrings {
	return LocalizedStrings{Other: "Other", Unspecified: "Not Specified"}
}

func instanceNode(label, className, id string) *ProcessedNode {
	return &ProcessedNode{
		Label: label,
		Key:   NewInstancesNodeKey([]InstanceKey{NewInstanceKey(className, id, "")}),
	}
}

func TestGroupLevel_ByClass_GroupsSiblingsOfSameClass(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	md.RegisterClass("Bis.Element", "Element", metadata.ClassKindEntity)

	a := instanceNode("Wall A", "Bis.Element", "0x1")
	a.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByClass: &ByClassParams{}}}
	b := instanceNode("Wall B", "Bis.Element", "0x2")
	b.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByClass: &ByClassParams{}}}

	level, err := groupLevel(context.Background(), []*ProcessedNode{a, b}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 1)
	assert.True(t, level[0].Key.IsGrouping())
	assert.Equal(t, "Element", level[0].Label)
	assert.Len(t, level[0].rawGroupedChildren, 2)
}

func TestGroupLevel_ByClass_HideIfNoSiblingsDissolves(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	md.RegisterClass("Bis.Element", "Element", metadata.ClassKindEntity)

	a := instanceNode("Wall A", "Bis.Element", "0x1")
	a.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByClass: &ByClassParams{HideIfNoSiblings: true}}}

	level, err := groupLevel(context.Background(), []*ProcessedNode{a}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 1)
	assert.False(t, level[0].Key.IsGrouping(), "sole grouping node with hide_if_no_siblings should dissolve into its child")
	assert.Equal(t, "Wall A", level[0].Label)
}

func TestGroupLevel_ByProperty_BucketsByFormattedValue(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	pair := func(label, className, id string, value interface{}) *ProcessedNode {
		n := instanceNode(label, className, id)
		n.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{
			ByProperties: &ByPropertiesParams{
				PropertyClassName: "Bis.Element",
				PropertyGroups:    []PropertyGroup{{PropertyName: "Category", PropertyValue: value}},
			},
		}}
		return n
	}
	a := pair("Wall A", "Bis.Element", "0x1", "Walls")
	b := pair("Wall B", "Bis.Element", "0x2", "Walls")
	c := pair("Door A", "Bis.Element", "0x3", "Doors")

	level, err := groupLevel(context.Background(), []*ProcessedNode{a, b, c}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 2)
	for _, g := range level {
		assert.True(t, g.Key.IsGrouping())
	}
}

func TestGroupLevel_ByProperty_RangeMatchFallsBackToOther(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	mk := func(label, id string, value interface{}) *ProcessedNode {
		n := instanceNode(label, "Bis.Element", id)
		n.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{
			ByProperties: &ByPropertiesParams{
				PropertyClassName: "Bis.Element",
				PropertyGroups: []PropertyGroup{{
					PropertyName:  "Size",
					PropertyValue: value,
					Ranges:        []PropertyRange{{From: 0, To: 10, Label: "Small"}},
				}},
			},
		}}
		return n
	}
	inRange := mk("A", "0x1", 5.0)
	outOfRange := mk("B", "0x2", 99.0)

	level, err := groupLevel(context.Background(), []*ProcessedNode{inRange, outOfRange}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 2)

	labels := map[string]bool{}
	for _, g := range level {
		labels[g.Label] = true
	}
	assert.True(t, labels["Small"])
	assert.True(t, labels["Other"])
}

func TestGroupLevel_ByLabel_MergesSameLabelIntoOneInstancesNode(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	a := instanceNode("Duplicate", "Bis.Element", "0x1")
	a.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByLabel: &ByLabelParams{Action: LabelGroupingMerge}}}
	b := instanceNode("Duplicate", "Bis.Element", "0x2")
	b.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByLabel: &ByLabelParams{Action: LabelGroupingMerge}}}

	level, err := groupLevel(context.Background(), []*ProcessedNode{a, b}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 1)
	assert.Equal(t, NodeKeyInstances, level[0].Key.Kind)
	assert.Len(t, level[0].Key.InstanceKeys, 2)
}

func TestGroupLevel_ByLabel_GroupActionCreatesLabelGroupingNode(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	a := instanceNode("Duplicate", "Bis.Element", "0x1")
	a.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByLabel: &ByLabelParams{Action: LabelGroupingGroup}}}
	b := instanceNode("Duplicate", "Bis.Element", "0x2")
	b.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByLabel: &ByLabelParams{Action: LabelGroupingGroup}}}

	level, err := groupLevel(context.Background(), []*ProcessedNode{a, b}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 1)
	assert.True(t, level[0].Key.IsGrouping())
	assert.Equal(t, GroupingKindLabel, level[0].Key.Grouping.Kind)
}

func TestGroupLevel_ResultSortedByLabel(t *testing.T) {
	md := metadata.NewInMemoryProvider()
	b := instanceNode("Banana", "Bis.Element", "0x1")
	a := instanceNode("Apple", "Bis.Element", "0x2")

	level, err := groupLevel(context.Background(), []*ProcessedNode{b, a}, md, testLocalized())
	require.NoError(t, err)
	require.Len(t, level, 2)
	assert.Equal(t, "Apple", level[0].Label)
	assert.Equal(t, "Banana", level[1].Label)
}

func TestApplyAutoExpand_AlwaysModeExpandsGroup(t *testing.T) {
	a := instanceNode("A", "Bis.Element", "0x1")
	a.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByClass: &ByClassParams{AutoExpand: AutoExpandAlways}}}
	group := &ProcessedNode{
		Key:                NewGroupingNodeKey(GroupingKey{Kind: GroupingKindClass, ClassName: "Bis.Element"}),
		rawGroupedChildren: []*ProcessedNode{a},
	}

	applyAutoExpand([]*ProcessedNode{group}, 0)
	assert.True(t, group.AutoExpand)
}

func TestApplyAutoExpand_SingleChildModeRequiresExactlyOneChild(t *testing.T) {
	a := instanceNode("A", "Bis.Element", "0x1")
	a.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByClass: &ByClassParams{AutoExpand: AutoExpandSingleChild}}}
	b := instanceNode("B", "Bis.Element", "0x2")
	b.ProcessingParams = &ProcessingParams{Grouping: &GroupingInstructions{ByClass: &ByClassParams{AutoExpand: AutoExpandSingleChild}}}
	group := &ProcessedNode{
		Key:                NewGroupingNodeKey(GroupingKey{Kind: GroupingKindClass, ClassName: "Bis.Element"}),
		rawGroupedChildren: []*ProcessedNode{a, b},
	}

	applyAutoExpand([]*ProcessedNode{group}, 0)
	assert.False(t, group.AutoExpand, "single_child auto-expand should not apply to a group with two children")
}
