package core

// Built-in import schemas. Column order here is the order used by templates
// and exports.

func attendeesSchema() *ImportSchema {
	return &ImportSchema{
		Kind:  KindAttendees,
		Label: "Attendees",
		Columns: []ColumnSpec{
			{
				Name:     "username",
				Required: true,
				Validate: MaxLen(100, "username must be at most 100 characters"),
				Example:  []string{"john.doe@example.com", "jane.smith@example.com"},
			},
			{
				Name:     "email",
				Required: true,
				Validate: Email("invalid email format"),
				Example:  []string{"john.doe@example.com", "jane.smith@example.com"},
			},
			{
				Name:     "firstName",
				Required: true,
				Validate: MaxLen(100, "firstName must be at most 100 characters"),
				Example:  []string{"John", "Jane"},
			},
			{
				Name:     "lastName",
				Required: true,
				Validate: MaxLen(100, "lastName must be at most 100 characters"),
				Example:  []string{"Doe", "Smith"},
			},
			{
				Name:     "phone",
				Validate: Phone("phone must contain at least 10 digits"),
				Example:  []string{"+1234567890", "+1234567891"},
			},
			{Name: "company", Example: []string{"Acme Corp", "Tech Inc"}},
			{Name: "department", Example: []string{"IT", "Marketing"}},
			{Name: "role", Example: []string{"Developer", "Manager"}},
		},
	}
}

func meetingsSchema() *ImportSchema {
	return &ImportSchema{
		Kind:  KindMeetings,
		Label: "Meetings",
		Columns: []ColumnSpec{
			{
				Name:     "title",
				Required: true,
				Validate: MaxLen(200, "title must be at most 200 characters"),
				Example:  []string{"Team Meeting", "Client Call"},
			},
			{Name: "description", Example: []string{"Weekly team standup", "Project discussion"}},
			{
				Name:     "startDate",
				Required: true,
				Validate: Date("invalid date format (YYYY-MM-DD)"),
				Example:  []string{"2024-12-25", "2024-12-26"},
			},
			{
				Name:     "endDate",
				Required: true,
				Validate: Date("invalid date format (YYYY-MM-DD)"),
				Example:  []string{"2024-12-25", "2024-12-26"},
			},
			{
				Name:     "startTime",
				Required: true,
				Validate: Clock("invalid time format (HH:MM)"),
				Example:  []string{"09:00", "14:00"},
			},
			{
				Name:     "endTime",
				Required: true,
				Validate: Clock("invalid time format (HH:MM)"),
				Example:  []string{"10:00", "15:30"},
			},
			{Name: "location", Example: []string{"Conference Room A", "Online"}},
			{Name: "clientId", Example: []string{"client1", "client2"}},
			{Name: "organizer", Example: []string{"John Doe", "Jane Smith"}},
			{Name: "otherAttendees", Example: []string{"External: Mike Smith", ""}},
			{
				Name:     "status",
				Default:  DefaultMeetingStatus,
				Validate: OneOf(MeetingStatuses, "status must be one of: scheduled, in-progress, completed, cancelled"),
				Example:  []string{"scheduled", "scheduled"},
			},
		},
		Rules: []RowRule{endNotBeforeStart},
	}
}

// endNotBeforeStart compares normalized YYYY-MM-DD strings, which order
// lexically the same as chronologically. It is skipped unless both dates
// passed their column checks.
func endNotBeforeStart(rec Record) []FieldError {
	start, okStart := rec["startDate"]
	end, okEnd := rec["endDate"]
	if !okStart || !okEnd {
		return nil
	}
	if end < start {
		return []FieldError{{Column: "endDate", Message: "end date must not be before start date"}}
	}
	return nil
}
