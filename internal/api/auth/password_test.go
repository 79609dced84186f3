package auth

import "testing"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "hunter2hunter2", false},
		{"valid mixed", "floorPlan42", false},
		{"too short", "abc1", true},
		{"no digit", "justletters", true},
		{"no letter", "12345678", true},
		{"empty", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidatePassword(%q) = %v, wantErr %v", tc.password, err, tc.wantErr)
			}
		})
	}
}
