package contact

import "time"

// DefaultService is stored when the visitor picks no service.
const DefaultService = "General Inquiry"

// Table holds contact form submissions.
const Table = "contact_submissions"

// SubmitRequest is the contact form as posted by the website, either as JSON or
// form-encoded.
type SubmitRequest struct {
	Name    string `json:"name" form:"name" binding:"required"`
	Email   string `json:"email" form:"email" binding:"required,email"`
	Phone   string `json:"phone" form:"phone"`
	Service string `json:"service" form:"service"`
	Message string `json:"message" form:"message" binding:"required"`
}

// Submission is one stored contact_submissions row.
type Submission struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone"`
	Service     string    `json:"service"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}
