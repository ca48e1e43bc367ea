package domain

// ReportView is the canonical composed representation returned after a save.
type ReportView struct {
	Report
	Collaborators          []int64             `json:"collaborators"`
	ActivityRecipients     []ActivityRecipient `json:"activityRecipients"`
	RecipientNextSteps     []Note              `json:"recipientNextSteps"`
	SpecialistNextSteps    []Note              `json:"specialistNextSteps"`
	GoalsAndObjectives     []GoalView          `json:"goalsAndObjectives"`
	ObjectivesWithoutGoals []ObjectiveView     `json:"objectivesWithoutGoals"`
	Approvers              []Approver          `json:"approvers"`
}

// ActivityRecipient normalizes a grant or other-entity attachment.
type ActivityRecipient struct {
	ID                  int64         `json:"id"`
	ActivityRecipientID int64         `json:"activityRecipientId"`
	Name                string        `json:"name"`
	Type                RecipientType `json:"type"`
}

type GoalView struct {
	ID         int64           `json:"id"`
	GrantID    int64           `json:"grantId"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	EndDate    *string         `json:"endDate,omitempty"`
	Source     string          `json:"source,omitempty"`
	Objectives []ObjectiveView `json:"objectives"`
}

// ObjectiveView folds the report-scoped join data into the objective.
type ObjectiveView struct {
	ID            int64    `json:"id"`
	GoalID        *int64   `json:"goalId,omitempty"`
	OtherEntityID *int64   `json:"otherEntityId,omitempty"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	TTAProvided   string   `json:"ttaProvided"`
	SupportType   string   `json:"supportType"`
	DisplayOrder  int      `json:"displayOrder"`
	Topics        []string `json:"topics"`
	Resources     []string `json:"resources"`
	Files         []string `json:"files"`
	Courses       []string `json:"courses"`
}
