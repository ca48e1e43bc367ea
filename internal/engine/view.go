package engine

import (
	"reportline/internal/domain"
	"reportline/internal/repo"
)

// buildGoalTree nests the report's objectives under their goals. Objectives
// owned by other entities are returned separately.
func buildGoalTree(goals []domain.Goal, objs []repo.ReportObjectiveRow, metadata map[int64][]domain.MetadataItem) ([]domain.GoalView, []domain.ObjectiveView) {
	tree := make([]domain.GoalView, 0, len(goals))
	index := make(map[int64]int, len(goals))
	for _, g := range goals {
		index[g.ID] = len(tree)
		tree = append(tree, domain.GoalView{
			ID:         g.ID,
			GrantID:    g.GrantID,
			Name:       g.Name,
			Status:     g.Status,
			EndDate:    g.EndDate,
			Source:     g.Source,
			Objectives: []domain.ObjectiveView{},
		})
	}
	loose := []domain.ObjectiveView{}
	for _, row := range objs {
		ov := objectiveView(row, metadata[row.Link.ID])
		if row.Objective.GoalID == nil {
			loose = append(loose, ov)
			continue
		}
		if i, ok := index[*row.Objective.GoalID]; ok {
			tree[i].Objectives = append(tree[i].Objectives, ov)
		}
	}
	return tree, loose
}

func objectiveView(row repo.ReportObjectiveRow, items []domain.MetadataItem) domain.ObjectiveView {
	status := row.Link.Status
	if status == "" {
		status = row.Objective.Status
	}
	ov := domain.ObjectiveView{
		ID:            row.Objective.ID,
		GoalID:        row.Objective.GoalID,
		OtherEntityID: row.Objective.OtherEntityID,
		Title:         row.Objective.Title,
		Status:        status,
		TTAProvided:   row.Link.TTAProvided,
		SupportType:   row.Link.SupportType,
		DisplayOrder:  row.Link.DisplayOrder,
		Topics:        []string{},
		Resources:     []string{},
		Files:         []string{},
		Courses:       []string{},
	}
	for _, m := range items {
		switch m.Kind {
		case domain.MetadataTopic:
			ov.Topics = append(ov.Topics, m.Ref)
		case domain.MetadataResource:
			ov.Resources = append(ov.Resources, m.Ref)
		case domain.MetadataFile:
			ov.Files = append(ov.Files, m.Ref)
		case domain.MetadataCourse:
			ov.Courses = append(ov.Courses, m.Ref)
		}
	}
	return ov
}
