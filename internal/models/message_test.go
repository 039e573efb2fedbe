package models

import "testing"

func TestIsImageUpload(t *testing.T) {
	url := "https://example.com/meal.jpg"
	empty := ""

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"image with url", Message{Kind: KindImage, ImageURL: &url}, true},
		{"image without url", Message{Kind: KindImage}, false},
		{"image with empty url", Message{Kind: KindImage, ImageURL: &empty}, false},
		{"text message", Message{Kind: KindText, ImageURL: &url}, false},
		{"confirmation message", Message{Kind: KindConfirmation}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsImageUpload(); got != tt.want {
				t.Errorf("IsImageUpload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsConfirmationReply(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"exact Yes", Message{Role: RoleUser, Kind: KindText, Text: "Yes"}, true},
		{"Yes with whitespace", Message{Role: RoleUser, Kind: KindText, Text: "  Yes\n"}, true},
		{"lowercase yes", Message{Role: RoleUser, Kind: KindText, Text: "yes"}, false},
		{"uppercase YES", Message{Role: RoleUser, Kind: KindText, Text: "YES"}, false},
		{"yes embedded", Message{Role: RoleUser, Kind: KindText, Text: "Yes please"}, false},
		{"assistant Yes", Message{Role: RoleAssistant, Kind: KindText, Text: "Yes"}, false},
		{"empty", Message{Role: RoleUser, Kind: KindText, Text: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsConfirmationReply(); got != tt.want {
				t.Errorf("IsConfirmationReply() = %v, want %v", got, tt.want)
			}
		})
	}
}
