package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReaderNext(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "single event",
			input: "data: {\"a\":1}\n\n",
			want:  []Event{{Data: `{"a":1}`}},
		},
		{
			name:  "done sentinel",
			input: "data: {\"a\":1}\n\ndata: [DONE]\n\n",
			want:  []Event{{Data: `{"a":1}`}, {Data: Done}},
		},
		{
			name:  "keep-alive comments skipped",
			input: ": OPENROUTER PROCESSING\n\ndata: x\n\n",
			want:  []Event{{Data: "x"}},
		},
		{
			name:  "multi-line data",
			input: "event: message\ndata: one\ndata: two\nid: 7\n\n",
			want:  []Event{{Type: "message", Data: "one\ntwo", ID: "7"}},
		},
		{
			name:  "crlf line endings",
			input: "data: a\r\n\r\ndata: b\r\n\r\n",
			want:  []Event{{Data: "a"}, {Data: "b"}},
		},
		{
			name:  "unterminated trailing event",
			input: "data: tail",
			want:  []Event{{Data: "tail"}},
		},
		{
			name:  "no space after colon",
			input: "data:{}\n\n",
			want:  []Event{{Data: "{}"}},
		},
		{
			name:  "empty stream",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			var got []Event
			for {
				ev, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("Next() error = %v", err)
				}
				got = append(got, *ev)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReaderNext_LargeLine(t *testing.T) {
	big := strings.Repeat("x", 512*1024)
	r := NewReader(strings.NewReader("data: " + big + "\n\n"))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(ev.Data) != len(big) {
		t.Errorf("data length = %d, want %d", len(ev.Data), len(big))
	}
}
