package ytdlp

import "testing"

func TestClassifyProgressWithETA(t *testing.T) {
	event := Classify("[download]  45.2% of 120.5MiB at 2.3MiB/s ETA 00:45")
	if event.Kind != KindProgress {
		t.Fatalf("expected progress event, got %v", event.Kind)
	}
	if event.Percent != 45.2 {
		t.Fatalf("expected percent 45.2, got %v", event.Percent)
	}
	if event.Speed != "2.3MiB/s" {
		t.Fatalf("expected speed 2.3MiB/s, got %q", event.Speed)
	}
	if event.ETA != "00:45" {
		t.Fatalf("expected eta 00:45, got %q", event.ETA)
	}
}

func TestClassifyProgressCompletionLine(t *testing.T) {
	event := Classify("[download] 100% of 120.5MiB in 00:52 at 2.3MiB/s")
	if event.Kind != KindProgress {
		t.Fatalf("expected progress event, got %v", event.Kind)
	}
	if event.Percent != 100 {
		t.Fatalf("expected percent 100, got %v", event.Percent)
	}
	if event.Speed != "2.3MiB/s" {
		t.Fatalf("expected speed 2.3MiB/s, got %q", event.Speed)
	}
	if event.ETA != "" {
		t.Fatalf("expected empty eta, got %q", event.ETA)
	}
}

func TestClassifyFragmentProgress(t *testing.T) {
	cases := []struct {
		line string
		want float64
	}{
		{"[download] Downloading fragment 3 of 12", 25},
		{"[download] Downloading video 1 of 4", 25},
		{"[download] Downloading fragment 1 of 3", 33},
		{"[download] Downloading fragment 2 of 3", 67},
	}
	for _, tc := range cases {
		event := Classify(tc.line)
		if event.Kind != KindProgress {
			t.Fatalf("%q: expected progress event, got %v", tc.line, event.Kind)
		}
		if event.Percent != tc.want {
			t.Fatalf("%q: expected percent %v, got %v", tc.line, tc.want, event.Percent)
		}
		if event.Speed != "" || event.ETA != "" {
			t.Fatalf("%q: fragment progress should not carry speed/eta", tc.line)
		}
	}
}

func TestClassifyDestination(t *testing.T) {
	event := Classify("[download] Destination: /data/downloads/My Video [abc123xyz00]/My Video.mp4")
	if event.Kind != KindDestination {
		t.Fatalf("expected destination event, got %v", event.Kind)
	}
	if event.Path != "/data/downloads/My Video [abc123xyz00]/My Video.mp4" {
		t.Fatalf("unexpected path %q", event.Path)
	}
}

func TestClassifyMerge(t *testing.T) {
	event := Classify(`[Merger] Merging formats into "/data/downloads/My Video [abc123xyz00]/My Video.mp4"`)
	if event.Kind != KindMerge {
		t.Fatalf("expected merge event, got %v", event.Kind)
	}
	if event.Path != "/data/downloads/My Video [abc123xyz00]/My Video.mp4" {
		t.Fatalf("unexpected path %q", event.Path)
	}
}

func TestClassifyUnrecognizedLines(t *testing.T) {
	lines := []string{
		"",
		"[youtube] abc123: Downloading webpage",
		"[info] Writing video description to: desc.txt",
		"[download] Downloading fragment 1 of 0",
		"WARNING: unable to extract channel",
	}
	for _, line := range lines {
		if event := Classify(line); event.Kind != KindNone {
			t.Fatalf("%q: expected no event, got %+v", line, event)
		}
	}
}
