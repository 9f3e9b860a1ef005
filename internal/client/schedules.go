package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/schedule-import/internal/core"
)

// Person is the embedded user summary the API attaches to a schedule.
type Person struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Schedule is a meeting as stored by the admin API.
type Schedule struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Location    string   `json:"location"`
	ClientID    string   `json:"clientId"`
	Client      *Person  `json:"client,omitempty"`
	AttendeeIDs []string `json:"attendeeIds"`
	Attendees   []Person `json:"attendees,omitempty"`
	Status      string   `json:"status"`
}

// ScheduleQuery filters a schedule listing. Zero fields are omitted.
type ScheduleQuery struct {
	Limit     int
	Offset    int
	StartDate string
	EndDate   string
	Status    string
	ClientID  string
}

func (q ScheduleQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("startDate", q.StartDate)
	set("endDate", q.EndDate)
	set("status", q.Status)
	set("clientId", q.ClientID)
	return v
}

// SchedulePage is one page of a schedule listing.
type SchedulePage struct {
	Success   bool       `json:"success"`
	Schedules []Schedule `json:"schedules"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
}

// ListSchedules fetches one page of schedules.
func (c *Client) ListSchedules(ctx context.Context, q ScheduleQuery) (*SchedulePage, error) {
	var page SchedulePage
	if err := c.do(ctx, http.MethodGet, "/schedules", q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchRecords pages through every schedule in [startDate, endDate] and
// returns them as meeting records.
func (c *Client) FetchRecords(ctx context.Context, startDate, endDate string) ([]core.Record, error) {
	var records []core.Record
	q := ScheduleQuery{Limit: c.pageSize, StartDate: startDate, EndDate: endDate}

	for {
		page, err := c.ListSchedules(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, s := range page.Schedules {
			records = append(records, s.Record())
		}

		q.Offset += len(page.Schedules)
		if !morePages(page, q) {
			break
		}
	}

	c.log.DebugContext(ctx, "schedules fetched", "start", startDate, "end", endDate, "count", len(records))
	return records, nil
}

// morePages reports whether another request is needed after page. A known
// total is authoritative, since the API may cap pages below the requested
// limit; without one a short page marks the end.
func morePages(page *SchedulePage, q ScheduleQuery) bool {
	if len(page.Schedules) == 0 {
		return false
	}
	if page.Total > 0 {
		return q.Offset < page.Total
	}
	return len(page.Schedules) >= q.Limit
}

// Record maps a schedule onto the meetings columns. The organizer is the
// client's username; otherAttendees lists attendee usernames.
func (s Schedule) Record() core.Record {
	organizer := ""
	if s.Client != nil {
		organizer = s.Client.Username
	}
	names := make([]string, 0, len(s.Attendees))
	for _, a := range s.Attendees {
		if a.Username != "" {
			names = append(names, a.Username)
		}
	}
	status := s.Status
	if status == "" {
		status = core.DefaultMeetingStatus
	}

	return core.Record{
		"title":          s.Title,
		"description":    s.Description,
		"startDate":      s.StartDate,
		"endDate":        s.EndDate,
		"startTime":      s.StartTime,
		"endTime":        s.EndTime,
		"location":       s.Location,
		"clientId":       s.ClientID,
		"organizer":      organizer,
		"otherAttendees": strings.Join(names, "; "),
		"status":         status,
	}
}
