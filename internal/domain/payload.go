package domain

// ReportPayload is the desired state submitted for one save. Nil pointers mean
// "leave untouched"; a non-nil pointer to an empty slice clears the collection.
type ReportPayload struct {
	RegionID              *int64            `json:"regionId,omitempty" validate:"omitempty,gt=0"`
	AuthorID              *int64            `json:"authorId,omitempty" validate:"omitempty,gt=0"`
	ActivityRecipientType *RecipientType    `json:"activityRecipientType,omitempty" enum:"recipient,other-entity" validate:"omitempty,oneof=recipient other-entity"`
	SubmissionStatus      *SubmissionStatus `json:"submissionStatus,omitempty" enum:"draft,submitted" validate:"omitempty,oneof=draft submitted"`
	StartDate             *string           `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate               *string           `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Duration              *float64          `json:"duration,omitempty" validate:"omitempty,gte=0"`
	NumberOfParticipants  *int              `json:"numberOfParticipants,omitempty" validate:"omitempty,gte=0"`
	DeliveryMethod        *string           `json:"deliveryMethod,omitempty"`
	Context               *string           `json:"context,omitempty"`
	AdditionalNotes       *string           `json:"additionalNotes,omitempty"`

	Collaborators          *[]int64            `json:"collaborators,omitempty" validate:"omitempty,dive,gt=0"`
	Recipients             *[]int64            `json:"recipients,omitempty" validate:"omitempty,dive,gt=0"`
	RecipientNextSteps     *[]NotePayload      `json:"recipientNextSteps,omitempty" validate:"omitempty,dive"`
	SpecialistNextSteps    *[]NotePayload      `json:"specialistNextSteps,omitempty" validate:"omitempty,dive"`
	Goals                  *[]GoalPayload      `json:"goals,omitempty" validate:"omitempty,dive"`
	ObjectivesWithoutGoals *[]ObjectivePayload `json:"objectivesWithoutGoals,omitempty" validate:"omitempty,dive"`

	RecipientsWhoHaveGoalsThatShouldBeRemoved *[]int64 `json:"recipientsWhoHaveGoalsThatShouldBeRemoved,omitempty" validate:"omitempty,dive,gt=0"`
	ApproverUserIDs                           *[]int64 `json:"approverUserIds,omitempty" validate:"omitempty,dive,gt=0"`
}

type NotePayload struct {
	ID           *int64 `json:"id,omitempty" validate:"omitempty,gt=0"`
	Note         string `json:"note,omitempty"`
	CompleteDate string `json:"completeDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type GoalPayload struct {
	GoalIDs    []int64            `json:"goalIds,omitempty" validate:"omitempty,dive,gt=0"`
	GrantIDs   []int64            `json:"grantIds" validate:"required,min=1,dive,gt=0"`
	Name       string             `json:"name" validate:"required"`
	Status     string             `json:"status,omitempty" validate:"omitempty,oneof='Draft' 'Not Started' 'In Progress' 'Suspended' 'Closed'"`
	EndDate    string             `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Source     string             `json:"source,omitempty"`
	Objectives []ObjectivePayload `json:"objectives,omitempty" validate:"omitempty,dive"`
}

// ObjectivePayload describes an objective on a report. Under a goal, IDs name
// previously persisted rows of that goal; without a goal, RecipientIDs lists the
// other entities the objective is declared against.
type ObjectivePayload struct {
	IDs          []int64  `json:"ids,omitempty" validate:"omitempty,dive,gt=0"`
	RecipientIDs []int64  `json:"recipientIds,omitempty" validate:"omitempty,dive,gt=0"`
	Title        string   `json:"title,omitempty"`
	Status       string   `json:"status,omitempty" validate:"omitempty,oneof='Not Started' 'In Progress' 'Suspended' 'Complete'"`
	TTAProvided  string   `json:"ttaProvided,omitempty"`
	SupportType  string   `json:"supportType,omitempty"`
	Topics       []string `json:"topics,omitempty" validate:"omitempty,dive,required"`
	Resources    []string `json:"resources,omitempty" validate:"omitempty,dive,required"`
	Files        []string `json:"files,omitempty" validate:"omitempty,dive,required"`
	Courses      []string `json:"courses,omitempty" validate:"omitempty,dive,required"`
}

// Empty reports whether the objective carries nothing worth persisting.
func (o ObjectivePayload) Empty() bool {
	return o.Title == "" && o.TTAProvided == "" &&
		len(o.Topics) == 0 && len(o.Resources) == 0 && len(o.Files) == 0 && len(o.Courses) == 0
}

// Metadata flattens the four association sets into kind/ref pairs.
func (o ObjectivePayload) Metadata() []MetadataItem {
	var items []MetadataItem
	add := func(kind MetadataKind, refs []string) {
		for _, ref := range refs {
			items = append(items, MetadataItem{Kind: kind, Ref: ref})
		}
	}
	add(MetadataTopic, o.Topics)
	add(MetadataResource, o.Resources)
	add(MetadataFile, o.Files)
	add(MetadataCourse, o.Courses)
	return items
}

type ApproverDecision struct {
	Status ApproverStatus `json:"status" enum:"approved,needs_action" validate:"required,oneof=approved needs_action"`
	Note   *string        `json:"note,omitempty"`
}
