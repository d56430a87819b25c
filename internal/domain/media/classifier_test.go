package media

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		declaredType string
		wantCategory Category
		wantOp       string
	}{
		{"image/png", Photo, "sendPhoto"},
		{"image/jpeg", Photo, "sendPhoto"},
		{"image/", Photo, "sendPhoto"},
		{"audio/mpeg", Audio, "sendAudio"},
		{"audio/ogg; codecs=opus", Audio, "sendAudio"},
		{"video/mp4", Video, "sendVideo"},
		{"application/pdf", Document, "sendDocument"},
		{"text/plain", Document, "sendDocument"},
		{"", Document, "sendDocument"},
		{"image", Document, "sendDocument"},
		{"garbage//", Document, "sendDocument"},
		{"IMAGE/PNG", Document, "sendDocument"},
		{" image/png", Document, "sendDocument"},
	}

	for _, tt := range tests {
		t.Run(tt.declaredType, func(t *testing.T) {
			gotCategory, gotOp := Classify(tt.declaredType)
			if gotCategory != tt.wantCategory {
				t.Errorf("Classify(%q) category = %q, ожидалась %q", tt.declaredType, gotCategory, tt.wantCategory)
			}
			if gotOp != tt.wantOp {
				t.Errorf("Classify(%q) operation = %q, ожидался %q", tt.declaredType, gotOp, tt.wantOp)
			}
		})
	}
}

func TestCategory_Field(t *testing.T) {
	tests := map[Category]string{
		Photo:         "photo",
		Audio:         "audio",
		Video:         "video",
		Document:      "document",
		Category("x"): "document",
	}
	for c, want := range tests {
		if got := c.Field(); got != want {
			t.Errorf("%q.Field() = %q, ожидалось %q", c, got, want)
		}
	}
}
