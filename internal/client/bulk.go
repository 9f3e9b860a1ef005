package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/schedule-import/internal/core"
)

// bulkPaths maps import kinds to their bulk create endpoints.
var bulkPaths = map[core.Kind]string{
	core.KindAttendees: "/client-attendees/bulk",
	core.KindMeetings:  "/schedules/bulk",
}

type bulkRequest struct {
	Records []core.Record `json:"records"`
}

type bulkResponse struct {
	Results []core.SubmitOutcome `json:"results"`
}

// BulkCreate creates records of the given kind in one call. Outcome
// indexes refer to positions in records. Records the API leaves out of its
// response are reported as failed.
func (c *Client) BulkCreate(ctx context.Context, kind core.Kind, records []core.Record) ([]core.SubmitOutcome, error) {
	path, ok := bulkPaths[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownImportKind, kind)
	}
	if len(records) == 0 {
		return []core.SubmitOutcome{}, nil
	}

	var resp bulkResponse
	if err := c.do(ctx, http.MethodPost, path, nil, bulkRequest{Records: records}, &resp); err != nil {
		return nil, err
	}

	outcomes := make([]core.SubmitOutcome, len(records))
	seen := make([]bool, len(records))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(records) {
			continue
		}
		outcomes[r.Index] = r
		seen[r.Index] = true
	}
	for i := range outcomes {
		if !seen[i] {
			outcomes[i] = core.SubmitOutcome{Index: i, Error: "no result returned for record"}
		}
	}

	c.log.DebugContext(ctx, "bulk create", "kind", kind, "records", len(records))
	return outcomes, nil
}
