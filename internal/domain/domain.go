package domain

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionDeleted   SubmissionStatus = "deleted"
)

type CalculatedStatus string

const (
	StatusDraft       CalculatedStatus = "draft"
	StatusSubmitted   CalculatedStatus = "submitted"
	StatusNeedsAction CalculatedStatus = "needs_action"
	StatusApproved    CalculatedStatus = "approved"
	StatusDeleted     CalculatedStatus = "deleted"
)

// ApproverStatus is nil on the row while the approver has not reviewed.
type ApproverStatus string

const (
	ApproverApproved    ApproverStatus = "approved"
	ApproverNeedsAction ApproverStatus = "needs_action"
)

type RecipientType string

const (
	RecipientTypeGrant       RecipientType = "recipient"
	RecipientTypeOtherEntity RecipientType = "other-entity"
)

type NoteChannel string

const (
	NoteChannelRecipient  NoteChannel = "recipient"
	NoteChannelSpecialist NoteChannel = "specialist"
)

const (
	GoalStatusDraft      = "Draft"
	GoalStatusNotStarted = "Not Started"
	GoalStatusInProgress = "In Progress"
	GoalStatusSuspended  = "Suspended"
	GoalStatusClosed     = "Closed"
)

const (
	ObjectiveStatusNotStarted = "Not Started"
	ObjectiveStatusInProgress = "In Progress"
	ObjectiveStatusSuspended  = "Suspended"
	ObjectiveStatusComplete   = "Complete"
)

const (
	CreatedViaActivityReport = "activityReport"
	CreatedViaRTR            = "rtr"
	CreatedViaAdmin          = "admin"
)

type MetadataKind string

const (
	MetadataTopic    MetadataKind = "topic"
	MetadataResource MetadataKind = "resource"
	MetadataFile     MetadataKind = "file"
	MetadataCourse   MetadataKind = "course"
)

type Report struct {
	ID                    int64            `json:"id"`
	RegionID              *int64           `json:"regionId,omitempty"`
	AuthorID              *int64           `json:"authorId,omitempty"`
	ActivityRecipientType RecipientType    `json:"activityRecipientType,omitempty" enum:"recipient,other-entity"`
	StartDate             *string          `json:"startDate,omitempty" format:"date"`
	EndDate               *string          `json:"endDate,omitempty" format:"date"`
	Duration              *float64         `json:"duration,omitempty"`
	NumberOfParticipants  *int             `json:"numberOfParticipants,omitempty"`
	DeliveryMethod        string           `json:"deliveryMethod,omitempty"`
	Context               string           `json:"context,omitempty"`
	AdditionalNotes       string           `json:"additionalNotes,omitempty"`
	SubmissionStatus      SubmissionStatus `json:"submissionStatus" enum:"draft,submitted,deleted"`
	CalculatedStatus      CalculatedStatus `json:"calculatedStatus" enum:"draft,submitted,needs_action,approved,deleted"`
	ApprovedAt            *string          `json:"approvedAt,omitempty" format:"date-time"`
	CreatedAt             string           `json:"createdAt" format:"date-time"`
	UpdatedAt             string           `json:"updatedAt" format:"date-time"`
}

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Grant struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	RecipientName string `json:"recipientName,omitempty"`
	RegionID      *int64 `json:"regionId,omitempty"`
	Status        string `json:"status,omitempty"`
}

type OtherEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Recipient is one attachment row; exactly one of GrantID and OtherEntityID is set.
type Recipient struct {
	ID            int64  `json:"id"`
	ReportID      int64  `json:"reportId"`
	GrantID       *int64 `json:"grantId,omitempty"`
	OtherEntityID *int64 `json:"otherEntityId,omitempty"`
}

type Note struct {
	ID           int64       `json:"id"`
	ReportID     int64       `json:"reportId"`
	Channel      NoteChannel `json:"noteType" enum:"recipient,specialist"`
	Note         string      `json:"note"`
	CompleteDate *string     `json:"completeDate,omitempty" format:"date"`
	CreatedAt    string      `json:"createdAt" format:"date-time"`
	UpdatedAt    string      `json:"updatedAt" format:"date-time"`
}

type Goal struct {
	ID           int64   `json:"id"`
	GrantID      int64   `json:"grantId"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	EndDate      *string `json:"endDate,omitempty" format:"date"`
	Source       string  `json:"source,omitempty"`
	CreatedVia   string  `json:"createdVia"`
	OnApprovedAR bool    `json:"onApprovedAR"`
	CreatedAt    string  `json:"createdAt" format:"date-time"`
	UpdatedAt    string  `json:"updatedAt" format:"date-time"`
}

// Objective belongs to a goal or directly to an other entity, never both.
type Objective struct {
	ID            int64  `json:"id"`
	GoalID        *int64 `json:"goalId,omitempty"`
	OtherEntityID *int64 `json:"otherEntityId,omitempty"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	CreatedVia    string `json:"createdVia"`
	OnApprovedAR  bool   `json:"onApprovedAR"`
	CreatedAt     string `json:"createdAt" format:"date-time"`
	UpdatedAt     string `json:"updatedAt" format:"date-time"`
}

// ReportObjective is the report-scoped join row for an objective.
type ReportObjective struct {
	ID           int64  `json:"id"`
	ReportID     int64  `json:"reportId"`
	ObjectiveID  int64  `json:"objectiveId"`
	TTAProvided  string `json:"ttaProvided,omitempty"`
	SupportType  string `json:"supportType,omitempty"`
	Status       string `json:"status,omitempty"`
	DisplayOrder int    `json:"displayOrder"`
}

type MetadataItem struct {
	Kind MetadataKind `json:"kind"`
	Ref  string       `json:"ref"`
}

type Approver struct {
	ID        int64           `json:"id"`
	ReportID  int64           `json:"reportId"`
	UserID    int64           `json:"userId"`
	Status    *ApproverStatus `json:"status,omitempty" enum:"approved,needs_action"`
	Note      *string         `json:"note,omitempty"`
	DeletedAt *string         `json:"deletedAt,omitempty" format:"date-time"`
	CreatedAt string          `json:"createdAt" format:"date-time"`
	UpdatedAt string          `json:"updatedAt" format:"date-time"`
}

// Active reports whether the approver row is not soft-deleted.
func (a Approver) Active() bool { return a.DeletedAt == nil }

// Reviewed reports whether the approver has left a decision or a note.
func (a Approver) Reviewed() bool {
	return a.Status != nil || (a.Note != nil && *a.Note != "")
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ReportID   int64  `json:"reportId,omitempty"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	ActorID    string `json:"actorId"`
	Payload    string `json:"payloadJson"`
}
