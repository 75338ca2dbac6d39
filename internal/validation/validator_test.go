// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package validation

import (
	"strings"
	"testing"
)

type policy struct {
	Frequency   string `validate:"required,oneof=hourly daily weekly monthly custom"`
	TimeOfDay   string `validate:"omitempty,timeofday"`
	RetainCount int    `validate:"min=1"`
	DayOfWeek   int    `validate:"min=0,max=6"`
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     policy
		wantField string
		wantMsg   string
	}{
		{name: "valid", input: policy{Frequency: "daily", TimeOfDay: "02:00", RetainCount: 3}},
		{name: "empty time ok", input: policy{Frequency: "hourly", RetainCount: 1}},
		{name: "bad frequency", input: policy{Frequency: "yearly", RetainCount: 1}, wantField: "Frequency", wantMsg: "must be one of"},
		{name: "bad time", input: policy{Frequency: "daily", TimeOfDay: "25:00", RetainCount: 1}, wantField: "TimeOfDay", wantMsg: "HH:MM"},
		{name: "retain zero", input: policy{Frequency: "daily", RetainCount: 0}, wantField: "RetainCount", wantMsg: "at least 1"},
		{name: "day of week", input: policy{Frequency: "weekly", RetainCount: 1, DayOfWeek: 7}, wantField: "DayOfWeek", wantMsg: "at most 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := err.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	err := ValidateStruct(&policy{Frequency: "", RetainCount: 0})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]string)
	if !ok || len(fields) != 2 {
		t.Fatalf("details = %#v", apiErr.Details)
	}
}

func TestIsTimeOfDay(t *testing.T) {
	for in, want := range map[string]bool{"00:00": true, "23:59": true, "2:00": false, "24:00": false, "12:60": false, "": false} {
		if got := IsTimeOfDay(in); got != want {
			t.Errorf("IsTimeOfDay(%q) = %v, want %v", in, got, want)
		}
	}
}
