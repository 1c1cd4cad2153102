package storage

import "testing"

func TestValidateChartFileType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		contentType string
		filename    string
		want        bool
	}{
		{"pdf by content type", "application/pdf", "chart.bin", true},
		{"png by content type", "image/png", "chart.bin", true},
		{"pdf by extension", "application/octet-stream", "chart.pdf", true},
		{"jpeg by extension", "", "photo.JPEG", true},
		{"webp by extension", "", "scan.webp", true},
		{"executable rejected", "application/x-msdownload", "virus.exe", false},
		{"plain text rejected", "text/plain", "notes.txt", false},
		{"no hints rejected", "", "mystery", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateChartFileType(tc.contentType, tc.filename); got != tc.want {
				t.Errorf("ValidateChartFileType(%q, %q): got %v, want %v",
					tc.contentType, tc.filename, got, tc.want)
			}
		})
	}
}

func TestContentTypeForFilename(t *testing.T) {
	t.Parallel()
	if got := ContentTypeForFilename("chart.pdf"); got != "application/pdf" {
		t.Errorf("pdf: got %q", got)
	}
	if got := ContentTypeForFilename("chart.PNG"); got != "image/png" {
		t.Errorf("png: got %q", got)
	}
	if got := ContentTypeForFilename("mystery"); got != "application/octet-stream" {
		t.Errorf("fallback: got %q", got)
	}
}

func TestChartKeys(t *testing.T) {
	t.Parallel()

	songKey := SongChartKey("song-1", "My Chart.pdf")
	if songKey != "charts/songs/song-1.pdf" {
		t.Errorf("SongChartKey: got %q", songKey)
	}

	entryKey := LineupChartKey("lineup-1", "song-1", "override.png")
	if entryKey != "charts/lineups/lineup-1/song-1.png" {
		t.Errorf("LineupChartKey: got %q", entryKey)
	}
}
