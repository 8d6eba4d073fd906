package bookings

import "time"

const (
	StatusNew        = "New"
	StatusContacted  = "Contacted"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

// Statuses lists the lifecycle values in display order.
var Statuses = []string{StatusNew, StatusContacted, StatusInProgress, StatusCompleted}

var validStatuses = map[string]struct{}{
	StatusNew:        {},
	StatusContacted:  {},
	StatusInProgress: {},
	StatusCompleted:  {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

// TimestampLayout is fixed width so stored timestamps sort lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

type Booking struct {
	ID                 string  `bson:"id" json:"id"`
	FullName           string  `bson:"full_name" json:"full_name" validate:"required,max=200"`
	Email              string  `bson:"email" json:"email" validate:"required,mail,max=254"`
	Phone              string  `bson:"phone" json:"phone" validate:"required,phone"`
	Service            string  `bson:"service" json:"service" validate:"required,max=200"`
	ProjectDeadline    *string `bson:"project_deadline" json:"project_deadline"`
	ProjectDescription string  `bson:"project_description" json:"project_description" validate:"required,max=5000"`
	WebsiteType        *string `bson:"website_type" json:"website_type"`
	Platform           *string `bson:"platform" json:"platform"`
	VideoType          *string `bson:"video_type" json:"video_type"`
	DesignType         *string `bson:"design_type" json:"design_type"`
	Status             string  `bson:"status" json:"status"`
	CreatedAt          string  `bson:"created_at" json:"created_at"`
	UpdatedAt          *string `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	IPAddress          string  `bson:"ip_address,omitempty" json:"-"`
}

type SubmitRequest struct {
	FullName           string  `json:"full_name"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	Service            string  `json:"service"`
	ProjectDeadline    *string `json:"project_deadline"`
	ProjectDescription string  `json:"project_description"`
	WebsiteType        *string `json:"website_type"`
	Platform           *string `json:"platform"`
	VideoType          *string `json:"video_type"`
	DesignType         *string `json:"design_type"`
	CompanyURL         *string `json:"company_url"`
}

type SubmitResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	BookingID string `json:"booking_id"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type ListFilter struct {
	Service string
	Status  string
}

type ListResponse struct {
	Bookings []Booking `json:"bookings"`
	Total    int       `json:"total"`
}

type Stats struct {
	Total      int64            `json:"total"`
	New        int64            `json:"new"`
	Contacted  int64            `json:"contacted"`
	InProgress int64            `json:"in_progress"`
	Completed  int64            `json:"completed"`
	ByService  map[string]int64 `json:"by_service"`
}
