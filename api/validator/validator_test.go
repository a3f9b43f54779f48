package validator

import "testing"

func TestValidator_ValidateStruct(t *testing.T) {
	type ingestPayload struct {
		TelegramID int64  `validate:"required"`
		MediaType  string `validate:"required"`
		MediaPath  string `validate:"required"`
		Caption    string
	}

	tests := []struct {
		name       string
		in         ingestPayload
		wantFields []string
	}{
		{
			name: "Valid",
			in: ingestPayload{
				TelegramID: 100,
				MediaType:  "photo",
				MediaPath:  "post_100.jpg",
			},
		},
		{
			name: "ValidWithoutCaption",
			in: ingestPayload{
				TelegramID: 100,
				MediaType:  "video",
				MediaPath:  "post_100.mp4",
				Caption:    "",
			},
		},
		{
			name:       "Empty",
			in:         ingestPayload{},
			wantFields: []string{"TelegramID", "MediaType", "MediaPath"},
		},
		{
			name: "MissingMediaPath",
			in: ingestPayload{
				TelegramID: 100,
				MediaType:  "photo",
			},
			wantFields: []string{"MediaPath"},
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateStruct(tt.in)
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("Got %d errors, want %d: %v", len(errs), len(tt.wantFields), errs)
			}
			for i, want := range tt.wantFields {
				if errs[i].Field != want {
					t.Errorf("Got error field %q, want %q", errs[i].Field, want)
				}
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	if errs := v.Validate("heart", "required"); errs != nil {
		t.Errorf("Got errors for a present value: %v", errs)
	}
	if errs := v.Validate("", "required"); len(errs) != 1 {
		t.Errorf("Got %d errors for a missing value, want 1", len(errs))
	}
}
