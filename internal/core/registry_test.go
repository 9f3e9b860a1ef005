package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestGetSchema(t *testing.T) {
	tests := []struct {
		kind    Kind
		columns []string
	}{
		{KindAttendees, attendeeHeader},
		{KindMeetings, meetingHeader},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, err := GetSchema(tt.kind)
			if err != nil {
				t.Fatalf("GetSchema: %v", err)
			}
			if !reflect.DeepEqual(s.ColumnNames(), tt.columns) {
				t.Errorf("columns = %v, want %v", s.ColumnNames(), tt.columns)
			}
		})
	}
}

func TestGetSchema_Unknown(t *testing.T) {
	_, err := GetSchema("rooms")
	if !errors.Is(err, ErrUnknownImportKind) {
		t.Errorf("err = %v, want ErrUnknownImportKind", err)
	}
}

func TestKinds(t *testing.T) {
	want := []Kind{KindAttendees, KindMeetings}
	if got := Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds = %v, want %v", got, want)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"attendees", KindAttendees, false},
		{" Meetings ", KindMeetings, false},
		{"users", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("register of a duplicate kind did not panic")
		}
	}()
	register(attendeesSchema())
}
