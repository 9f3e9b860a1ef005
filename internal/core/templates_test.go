package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateTemplate(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{
			kind: KindAttendees,
			want: "username,email,firstName,lastName,phone,company,department,role\n" +
				"john.doe@example.com,john.doe@example.com,John,Doe,+1234567890,Acme Corp,IT,Developer\n" +
				"jane.smith@example.com,jane.smith@example.com,Jane,Smith,+1234567891,Tech Inc,Marketing,Manager\n",
		},
		{
			kind: KindMeetings,
			want: "title,description,startDate,endDate,startTime,endTime,location,clientId,organizer,otherAttendees,status\n" +
				"Team Meeting,Weekly team standup,2024-12-25,2024-12-25,09:00,10:00,Conference Room A,client1,John Doe,External: Mike Smith,scheduled\n" +
				"Client Call,Project discussion,2024-12-26,2024-12-26,14:00,15:30,Online,client2,Jane Smith,,scheduled\n",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := GenerateTemplate(tt.kind)
			if err != nil {
				t.Fatalf("GenerateTemplate: %v", err)
			}
			if got != tt.want {
				t.Errorf("template =\n%s\nwant\n%s", got, tt.want)
			}
			again, _ := GenerateTemplate(tt.kind)
			if again != got {
				t.Error("template differs between calls")
			}
		})
	}
}

func TestGenerateTemplate_UnknownKind(t *testing.T) {
	if _, err := GenerateTemplate("rooms"); !errors.Is(err, ErrUnknownImportKind) {
		t.Errorf("err = %v, want ErrUnknownImportKind", err)
	}
}

func TestTemplateFilename(t *testing.T) {
	if got := TemplateFilename(KindMeetings); got != "meetings_template.csv" {
		t.Errorf("TemplateFilename = %q", got)
	}
}

var sampleSchedules = []Record{
	{
		"title": "Kickoff", "description": "Intro, agenda", "startDate": "2024-01-10", "endDate": "2024-01-10",
		"startTime": "09:00", "endTime": "10:00", "location": "Room 1", "clientId": "c1",
		"organizer": "Ann", "otherAttendees": "", "status": "scheduled",
	},
}

func TestExportRecords_Formats(t *testing.T) {
	header := "title,description,startDate,endDate,startTime,endTime,location,clientId,organizer,otherAttendees,status"

	tests := []struct {
		format       ExportFormat
		wantName     string
		wantType     string
		wantContains []string
		wantPrefix   string
	}{
		{
			format:     FormatCSV,
			wantName:   "schedules_export_2024-01-01_to_2024-01-31.csv",
			wantType:   "text/csv",
			wantPrefix: header + "\n",
			wantContains: []string{
				`Kickoff,"Intro, agenda",2024-01-10,2024-01-10,09:00,10:00,Room 1,c1,Ann,,scheduled`,
			},
		},
		{
			format:     FormatExcel,
			wantName:   "schedules_export_2024-01-01_to_2024-01-31.xlsx",
			wantType:   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			wantPrefix: header + "\n",
		},
		{
			format:     FormatPDF,
			wantName:   "schedules_export_2024-01-01_to_2024-01-31.pdf",
			wantType:   "application/pdf",
			wantPrefix: "PDF Export\n\ntitle | description | startDate",
			wantContains: []string{
				"Kickoff | Intro, agenda | 2024-01-10",
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			req := ExportRequest{StartDate: "2024-01-01", EndDate: "2024-01-31", Format: tt.format}
			file, err := ExportRecords(req, sampleSchedules)
			if err != nil {
				t.Fatalf("ExportRecords: %v", err)
			}
			if file.Filename != tt.wantName {
				t.Errorf("Filename = %q, want %q", file.Filename, tt.wantName)
			}
			if file.ContentType != tt.wantType {
				t.Errorf("ContentType = %q, want %q", file.ContentType, tt.wantType)
			}
			if !strings.HasPrefix(file.Content, tt.wantPrefix) {
				t.Errorf("Content = %q, want prefix %q", file.Content, tt.wantPrefix)
			}
			for _, s := range tt.wantContains {
				if !strings.Contains(file.Content, s) {
					t.Errorf("Content missing %q:\n%s", s, file.Content)
				}
			}
			if file.Records != 1 {
				t.Errorf("Records = %d, want 1", file.Records)
			}
		})
	}
}

func TestExportRecords_ExcelMatchesCSVBody(t *testing.T) {
	csvFile, _ := ExportRecords(ExportRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Format: FormatCSV}, sampleSchedules)
	xlsFile, _ := ExportRecords(ExportRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Format: FormatExcel}, sampleSchedules)

	if csvFile.Content != xlsFile.Content {
		t.Error("excel export content differs from csv")
	}
}

type countingFetcher struct {
	calls   int
	records []Record
}

func (f *countingFetcher) FetchRecords(ctx context.Context, start, end string) ([]Record, error) {
	f.calls++
	return f.records, nil
}

func TestExporter_InvalidRangeSkipsFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	exp := NewExporter(fetcher)

	_, err := exp.Export(context.Background(), ExportRequest{StartDate: "2024-02-01", EndDate: "2024-01-01", Format: FormatCSV})

	var rangeErr *InvalidDateRangeError
	if !errors.As(err, &rangeErr) || !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("err = %v, want InvalidDateRangeError", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times, want 0", fetcher.calls)
	}
}

func TestExporter_Export(t *testing.T) {
	fetcher := &countingFetcher{records: sampleSchedules}
	file, err := NewExporter(fetcher).Export(context.Background(), ExportRequest{StartDate: "2024-01-01", EndDate: "2024-01-01", Format: FormatCSV})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if fetcher.calls != 1 || file.Records != 1 {
		t.Errorf("calls=%d records=%d, want 1/1", fetcher.calls, file.Records)
	}
}

func TestValidateExportRequest(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{"same day", "2024-01-01", "2024-01-01", false},
		{"ordered", "2024-01-01", "2024-02-01", false},
		{"reversed", "2024-02-01", "2024-01-01", true},
		{"bad start", "01/02/2024", "2024-02-01", true},
		{"bad end", "2024-01-01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExportRequest(ExportRequest{StartDate: tt.start, EndDate: tt.end})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDateRange) {
				t.Errorf("err %v does not wrap ErrInvalidDateRange", err)
			}
		})
	}
}
