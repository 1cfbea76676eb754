package entities

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"2026-08-28", "2026-08-28", true},
		{"  2026-08-28  ", "2026-08-28", true},
		{"2026-13-01", "", false},
		{"28-08-2026", "", false},
		{"2026-08-28T09:00:00Z", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeDate(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAddDaysCrossesMonthBoundary(t *testing.T) {
	if got := AddDays("2026-08-28", -30); got != "2026-07-29" {
		t.Fatalf("AddDays back 30 days = %s", got)
	}
	if got := AddDays("2026-08-28", 4); got != "2026-09-01" {
		t.Fatalf("AddDays forward 4 days = %s", got)
	}
}

func TestWeekdayOf(t *testing.T) {
	if got := WeekdayOf("2026-08-28"); got != time.Friday {
		t.Fatalf("expected Friday, got %s", got)
	}
}

func TestDeliveredOnlyForSent(t *testing.T) {
	for _, status := range []CampaignStatus{
		CampaignStatusProcessing, CampaignStatusDraft, CampaignStatusInReview,
		CampaignStatusChangesMade, CampaignStatusReadyToSend, CampaignStatusFailed,
	} {
		if (Campaign{Status: status}).Delivered() {
			t.Fatalf("%s must not count as delivered", status)
		}
	}
	if !(Campaign{Status: CampaignStatusSent}).Delivered() {
		t.Fatalf("sent must count as delivered")
	}
}
