package dto

// CreateTeacherRequest registers a teacher; quotas are derived from rank and specialization.
type CreateTeacherRequest struct {
	Name           string   `json:"name" validate:"required,max=120"`
	Phone          *string  `json:"phone" validate:"omitempty,e164"`
	Rank           string   `json:"rank" validate:"required,oneof=PRACTITIONER ADVANCED EXPERT"`
	Specialization string   `json:"specialization" validate:"max=200"`
	Subjects       []string `json:"subjects"`
}

// UpdateTeacherRequest patches a teacher. Nil fields are left untouched.
type UpdateTeacherRequest struct {
	Name           *string  `json:"name" validate:"omitempty,max=120"`
	Phone          *string  `json:"phone" validate:"omitempty,e164"`
	Rank           *string  `json:"rank" validate:"omitempty,oneof=PRACTITIONER ADVANCED EXPERT"`
	Specialization *string  `json:"specialization" validate:"omitempty,max=200"`
	Subjects       []string `json:"subjects"`
	Active         *bool    `json:"active"`
}

// CreateClassRequest registers a class.
type CreateClassRequest struct {
	ID    string `json:"id" validate:"omitempty,max=40"`
	Name  string `json:"name" validate:"required,max=40"`
	Grade string `json:"grade" validate:"required,max=10"`
}

// CreateSubjectRequest registers a subject and its weekly demand.
type CreateSubjectRequest struct {
	ID             string   `json:"id" validate:"omitempty,max=80"`
	Name           string   `json:"name" validate:"required,max=120"`
	WeeklyHours    int      `json:"weeklyHours" validate:"min=0,max=35"`
	MaxConsecutive int      `json:"maxConsecutive" validate:"min=0,max=7"`
	Grades         []string `json:"grades" validate:"omitempty,dive,required"`
}
