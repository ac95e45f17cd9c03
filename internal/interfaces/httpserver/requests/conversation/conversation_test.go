package conversationrequests

import (
	"encoding/json"
	"testing"
)

func TestMessageContentDecodesPlainString(t *testing.T) {
	var request ReplaceMessagesRequest
	body := `{"messages":[{"role":"user","content":"hello"}]}`

	if err := json.Unmarshal([]byte(body), &request); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if got := string(request.Messages[0].Content); got != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}
}

func TestMessageContentFlattensStructuredParts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "single text part",
			body: `{"messages":[{"role":"user","content":[{"type":"text","text":"hello"}]}]}`,
			want: "hello",
		},
		{
			name: "multiple text parts joined",
			body: `{"messages":[{"role":"user","content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}]}`,
			want: "first\nsecond",
		},
		{
			name: "non-text parts contribute nothing",
			body: `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":"https://example.com/x.png"},{"type":"text","text":"caption"}]}]}`,
			want: "caption",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var request ReplaceMessagesRequest
			if err := json.Unmarshal([]byte(tt.body), &request); err != nil {
				t.Fatalf("unmarshal error = %v", err)
			}
			if got := string(request.Messages[0].Content); got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageContentRejectsOtherShapes(t *testing.T) {
	var request ReplaceMessagesRequest
	body := `{"messages":[{"role":"user","content":42}]}`

	if err := json.Unmarshal([]byte(body), &request); err == nil {
		t.Error("expected error for numeric content")
	}
}

func TestMessagePayloadToReplaceItemKeepsFlattenedContent(t *testing.T) {
	var request ReplaceMessagesRequest
	body := `{"messages":[{"role":"assistant","content":[{"type":"text","text":"flat"}]}]}`

	if err := json.Unmarshal([]byte(body), &request); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	item := request.Messages[0].ToReplaceItem()
	if item.Content != "flat" {
		t.Errorf("replace item content = %q, want %q", item.Content, "flat")
	}
}
